// Command seed populates the database with demo schools, lists and members.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"parentslist/internal/config"
	"parentslist/internal/database"
	"parentslist/internal/lock"
	"parentslist/internal/piicodec"
	"parentslist/internal/repository"
	"parentslist/internal/seed"
	"parentslist/internal/service"
)

func main() {
	numSchools := flag.Int("schools", 1, "Number of schools to create")
	numLists := flag.Int("lists", 5, "Number of lists to create")
	membersPerList := flag.Int("members", 8, "Number of applicants per list")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated names")
	flag.Parse()

	log.Printf("Target: %d schools, %d lists, %d applicants per list, clean=%v", *numSchools, *numLists, *membersPerList, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// List leaders need a confirmed email, which needs the PII key.
	if cfg.PIIKey == "" {
		log.Fatal("PII_KEY is required to seed confirmed accounts")
	}
	codec, err := piicodec.NewFromBase64(cfg.PIIKey)
	if err != nil {
		log.Fatalf("Invalid PII_KEY: %v", err)
	}

	store := repository.NewStore(db)
	uow := repository.NewUnitOfWork(db)
	mailbox := seed.NewMailbox()
	s := seed.NewSeeder(
		db,
		service.NewUserService(store, uow, codec, mailbox),
		service.NewSchoolService(store, uow),
		service.NewMembershipService(store, uow, lock.NewLocalLocker(), nil),
		mailbox,
		*randSeed,
	)

	result, err := s.Run(context.Background(), seed.Options{
		NumSchools:     *numSchools,
		NumLists:       *numLists,
		MembersPerList: *membersPerList,
		ShouldClean:    *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d schools, %d users and %d lists", len(result.Schools), len(result.Users), len(result.Lists))
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
