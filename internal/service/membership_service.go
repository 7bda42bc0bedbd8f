package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"parentslist/internal/lock"
	"parentslist/internal/middleware"
	"parentslist/internal/models"
	"parentslist/internal/notifications"
	"parentslist/internal/observability"
	"parentslist/internal/repository"
	"parentslist/internal/validation"
)

// JoinRequestNotifier alerts a list creator about a new join request.
type JoinRequestNotifier interface {
	NotifyJoinRequest(ctx context.Context, recipientID uint, event notifications.JoinRequest) error
}

// ListSummary is a list together with its current occupancy.
type ListSummary struct {
	models.ParentsList
	NbHolders     int64 `json:"nb_holders"`
	NbSubstitutes int64 `json:"nb_substitutes"`
	NbWaiting     int64 `json:"nb_waiting"`
	LeaderUserID  *uint `json:"leader_user_id"`
}

// MembershipService runs the membership lifecycle. Every mutation of a list
// holds that list's lock and executes as one unit of work.
type MembershipService struct {
	store    repository.Store
	uow      repository.UnitOfWork
	locker   lock.Locker
	notifier JoinRequestNotifier
	ordering PositionOrdering
}

// NewMembershipService returns a new MembershipService. store serves reads
// outside transactions. notifier may be nil.
func NewMembershipService(store repository.Store, uow repository.UnitOfWork, locker lock.Locker, notifier JoinRequestNotifier) *MembershipService {
	return &MembershipService{
		store:    store,
		uow:      uow,
		locker:   locker,
		notifier: notifier,
	}
}

// CreateList founds a list in schoolID and makes the actor its leader at
// position 1. The actor must belong to the school and have confirmed an email.
func (s *MembershipService) CreateList(ctx context.Context, actorID, schoolID uint, name string, capacity int) (list *models.ParentsList, leader *models.Membership, err error) {
	defer func() { recordOutcome("create_list", err) }()

	name, err = validation.NormalizeListName(name)
	if err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	if err = validation.ValidateCapacity(capacity); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}

	err = s.withLock(ctx, lock.UserKey(actorID), func(ctx context.Context) error {
		return s.uow.Do(ctx, "create_list", func(ctx context.Context, st repository.Store) error {
			if _, err := st.Users.GetByID(ctx, actorID); err != nil {
				return err
			}
			if err := requireSchoolMember(ctx, st, schoolID, actorID); err != nil {
				return err
			}
			if err := requireConfirmedEmail(ctx, st, actorID); err != nil {
				return err
			}

			m, err := st.Memberships.FindByUserID(ctx, actorID)
			if err != nil {
				return err
			}
			if _, affiliated := m.Affiliation(); affiliated {
				return models.NewPreconditionFailedError("you already belong to a list")
			}

			exists, err := st.Lists.ExistsByName(ctx, name)
			if err != nil {
				return err
			}
			if exists {
				return models.NewConflictError("list name already taken")
			}

			list = &models.ParentsList{Name: name, Capacity: capacity, SchoolID: schoolID, CreatorID: actorID}
			if err := st.Lists.Create(ctx, list); err != nil {
				return err
			}

			leader, err = affiliate(ctx, st, m, actorID, models.Affiliation{
				ListID:   list.ID,
				Status:   models.MembershipStatusLeader,
				IsAdmin:  true,
				Position: 1,
			})
			return err
		})
	})
	if err != nil {
		return nil, nil, err
	}

	middleware.Logger.InfoContext(ctx, "list created",
		slog.Uint64("list_id", uint64(list.ID)),
		slog.Uint64("school_id", uint64(list.SchoolID)),
		slog.String("name", list.Name),
		slog.Int("capacity", list.Capacity),
	)
	return list, leader, nil
}

// RequestJoin puts the actor on the waiting queue of a list and notifies the
// list's creator once the request is committed. Only members of the list's
// school may ask.
func (s *MembershipService) RequestJoin(ctx context.Context, actorID, listID uint, message string) (membership *models.Membership, err error) {
	defer func() { recordOutcome("request_join", err) }()

	message = strings.TrimSpace(message)
	if err = validation.ValidateJoinMessage(message); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var list *models.ParentsList
	var user *models.User
	err = s.withLock(ctx, lock.UserKey(actorID), func(ctx context.Context) error {
		return s.uow.Do(ctx, "request_join", func(ctx context.Context, st repository.Store) error {
			var err error
			if list, err = st.Lists.GetByID(ctx, listID); err != nil {
				return err
			}
			if user, err = st.Users.GetByID(ctx, actorID); err != nil {
				return err
			}
			if err := requireSchoolMember(ctx, st, list.SchoolID, actorID); err != nil {
				return err
			}

			m, err := st.Memberships.FindByUserID(ctx, actorID)
			if err != nil {
				return err
			}
			if _, affiliated := m.Affiliation(); affiliated {
				return models.NewConflictError("you already belong to a list")
			}

			membership, err = affiliate(ctx, st, m, actorID, models.Affiliation{
				ListID: listID,
				Status: models.MembershipStatusWaiting,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyJoinRequest(ctx, list, user, message)
	return membership, nil
}

func (s *MembershipService) notifyJoinRequest(ctx context.Context, list *models.ParentsList, user *models.User, message string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyJoinRequest(ctx, list.CreatorID, notifications.JoinRequest{
		ListID:   list.ID,
		ListName: list.Name,
		UserID:   user.ID,
		Username: user.Username,
		Message:  message,
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "join request notification failed",
			slog.Uint64("list_id", uint64(list.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// Accept admits a waiting user as HOLDER or SUBSTITUTE depending on capacity.
func (s *MembershipService) Accept(ctx context.Context, actorID, listID, targetUserID uint) (*models.Membership, error) {
	return s.mutateMember(ctx, "accept", actorID, listID, targetUserID,
		func(ctx context.Context, st repository.Store, list *models.ParentsList, target *models.Membership) error {
			if err := requireWaiting(target); err != nil {
				return err
			}

			holders, err := st.Memberships.CountByStatus(ctx, listID, models.OrderedStatuses...)
			if err != nil {
				return err
			}
			substitutes, err := st.Memberships.CountByStatus(ctx, listID, models.MembershipStatusSubstitute)
			if err != nil {
				return err
			}

			decision, err := DecideCapacity(list.Capacity, holders, substitutes)
			if err != nil {
				return err
			}

			target.Affiliate(models.Affiliation{
				ListID:   listID,
				Status:   decision.Status,
				Position: decision.Position,
			})
			return st.Memberships.Save(ctx, target)
		})
}

// Reject turns down a waiting user, leaving them unaffiliated.
func (s *MembershipService) Reject(ctx context.Context, actorID, listID, targetUserID uint) (*models.Membership, error) {
	return s.mutateMember(ctx, "reject", actorID, listID, targetUserID,
		func(ctx context.Context, st repository.Store, _ *models.ParentsList, target *models.Membership) error {
			if err := requireWaiting(target); err != nil {
				return err
			}
			target.Unaffiliate()
			return st.Memberships.Save(ctx, target)
		})
}

// MakeAdmin grants admin rights to an accepted member. Granting them twice is a no-op.
func (s *MembershipService) MakeAdmin(ctx context.Context, actorID, listID, targetUserID uint) (*models.Membership, error) {
	return s.mutateMember(ctx, "make_admin", actorID, listID, targetUserID,
		func(ctx context.Context, st repository.Store, _ *models.ParentsList, target *models.Membership) error {
			a, _ := target.Affiliation()
			if a.Status == models.MembershipStatusWaiting {
				return models.NewPreconditionFailedError("membership must be accepted first")
			}
			if a.IsAdmin {
				return nil
			}
			a.IsAdmin = true
			target.Affiliate(a)
			return st.Memberships.Save(ctx, target)
		})
}

// MoveUp moves a ranked member one position toward the top.
func (s *MembershipService) MoveUp(ctx context.Context, actorID, listID, targetUserID uint) (*models.Membership, error) {
	return s.mutateMember(ctx, "move_up", actorID, listID, targetUserID,
		func(ctx context.Context, st repository.Store, _ *models.ParentsList, target *models.Membership) error {
			return s.ordering.MoveUp(ctx, st.Memberships, listID, target)
		})
}

// MoveDown moves a ranked member one position toward the bottom.
func (s *MembershipService) MoveDown(ctx context.Context, actorID, listID, targetUserID uint) (*models.Membership, error) {
	return s.mutateMember(ctx, "move_down", actorID, listID, targetUserID,
		func(ctx context.Context, st repository.Store, _ *models.ParentsList, target *models.Membership) error {
			return s.ordering.MoveDown(ctx, st.Memberships, listID, target)
		})
}

// Leave removes the actor from their list. The leader cannot leave. When a
// holder leaves, the members ranked after them move up one position.
func (s *MembershipService) Leave(ctx context.Context, actorID uint) (membership *models.Membership, err error) {
	defer func() { recordOutcome("leave", err) }()

	current, err := s.store.Memberships.FindByUserID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	peek, ok := current.Affiliation()
	if !ok {
		return nil, models.NewNotFoundMessage("you do not belong to any list")
	}
	listID := peek.ListID

	err = s.withLock(ctx, lock.ListKey(listID), func(ctx context.Context) error {
		return s.uow.Do(ctx, "leave", func(ctx context.Context, st repository.Store) error {
			if _, err := st.Lists.GetByIDForUpdate(ctx, listID); err != nil {
				return err
			}

			m, err := st.Memberships.FindByUserID(ctx, actorID)
			if err != nil {
				return err
			}
			a, ok := m.Affiliation()
			if !ok {
				return models.NewNotFoundMessage("you do not belong to any list")
			}
			if a.ListID != listID {
				return models.NewConflictError("membership changed concurrently, try again")
			}
			if a.Status == models.MembershipStatusLeader {
				return models.NewPreconditionFailedError("the leader cannot leave the list")
			}

			m.Unaffiliate()
			if err := st.Memberships.Save(ctx, m); err != nil {
				return err
			}
			if a.Status == models.MembershipStatusHolder {
				if err := s.ordering.CloseGap(ctx, st.Memberships, listID, a.Position); err != nil {
					return err
				}
			}
			membership = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// GetMyMembership returns the actor's membership, or an unaffiliated one when
// the actor never joined anything.
func (s *MembershipService) GetMyMembership(ctx context.Context, actorID uint) (*models.Membership, error) {
	m, err := s.store.Memberships.FindByUserID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &models.Membership{UserID: actorID}, nil
	}
	return m, nil
}

// CountHolders counts the ranked members of a list, leader included.
func (s *MembershipService) CountHolders(ctx context.Context, listID uint) (int64, error) {
	return s.store.Memberships.CountByStatus(ctx, listID, models.OrderedStatuses...)
}

// CountSubstitutes counts the substitutes of a list.
func (s *MembershipService) CountSubstitutes(ctx context.Context, listID uint) (int64, error) {
	return s.store.Memberships.CountByStatus(ctx, listID, models.MembershipStatusSubstitute)
}

// LeaderUserID returns the user id of the list's leader.
func (s *MembershipService) LeaderUserID(ctx context.Context, listID uint) (uint, error) {
	leader, err := s.store.Memberships.GetLeader(ctx, listID)
	if err != nil {
		return 0, err
	}
	return leader.UserID, nil
}

// GetListSummary returns one list with its occupancy.
func (s *MembershipService) GetListSummary(ctx context.Context, listID uint) (*ListSummary, error) {
	list, err := s.store.Lists.GetByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, list)
}

// ListSummaries returns every list with its occupancy, restricted to schoolID
// when it is non-zero.
func (s *MembershipService) ListSummaries(ctx context.Context, schoolID uint) ([]ListSummary, error) {
	lists, err := s.store.Lists.List(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ListSummary, 0, len(lists))
	for i := range lists {
		summary, err := s.summarize(ctx, &lists[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (s *MembershipService) summarize(ctx context.Context, list *models.ParentsList) (*ListSummary, error) {
	summary := &ListSummary{ParentsList: *list}

	var err error
	if summary.NbHolders, err = s.CountHolders(ctx, list.ID); err != nil {
		return nil, err
	}
	if summary.NbSubstitutes, err = s.CountSubstitutes(ctx, list.ID); err != nil {
		return nil, err
	}
	if summary.NbWaiting, err = s.store.Memberships.CountByStatus(ctx, list.ID, models.MembershipStatusWaiting); err != nil {
		return nil, err
	}

	leaderID, err := s.LeaderUserID(ctx, list.ID)
	switch {
	case err == nil:
		summary.LeaderUserID = &leaderID
	case !models.IsCode(err, models.CodeNotFound):
		return nil, err
	}
	return summary, nil
}

// ListMembers returns the members of a list in display order: ranked members
// by position, then substitutes, then pending requests. Only members of the
// list may read it.
func (s *MembershipService) ListMembers(ctx context.Context, actorID, listID uint) ([]models.Membership, error) {
	if _, err := s.store.Lists.GetByID(ctx, listID); err != nil {
		return nil, err
	}

	actor, err := s.store.Memberships.FindByUserID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.AffiliatedWith(listID) {
		return nil, models.NewUnauthorizedError("you are not a member of this list")
	}

	members, err := s.store.Memberships.ListByList(ctx, listID)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(members, func(a, b models.Membership) int {
		if ra, rb := displayRank(a), displayRank(b); ra != rb {
			return ra - rb
		}
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return int(a.ID) - int(b.ID)
	})
	return members, nil
}

// displayRank puts ranked members (leader and holders) first, then
// substitutes, then waiting members.
func displayRank(m models.Membership) int {
	switch {
	case m.Status == nil:
		return 3
	case m.Status.IsOrdered():
		return 0
	case *m.Status == models.MembershipStatusSubstitute:
		return 1
	default:
		return 2
	}
}

type memberMutation func(ctx context.Context, st repository.Store, list *models.ParentsList, target *models.Membership) error

// mutateMember runs an admin action on another member of listID: it takes the
// list lock, locks the list row, checks the actor is an admin of the list and
// loads the target's membership before calling fn.
func (s *MembershipService) mutateMember(ctx context.Context, operation string, actorID, listID, targetUserID uint, fn memberMutation) (target *models.Membership, err error) {
	defer func() { recordOutcome(operation, err) }()

	err = s.withLock(ctx, lock.ListKey(listID), func(ctx context.Context) error {
		return s.uow.Do(ctx, operation, func(ctx context.Context, st repository.Store) error {
			list, err := st.Lists.GetByIDForUpdate(ctx, listID)
			if err != nil {
				return err
			}
			if err := requireAdmin(ctx, st, actorID, listID); err != nil {
				return err
			}

			target, err = st.Memberships.FindByUserID(ctx, targetUserID)
			if err != nil {
				return err
			}
			if !target.AffiliatedWith(listID) {
				return models.NewNotFoundMessage("user has no membership on this list")
			}
			return fn(ctx, st, list, target)
		})
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "membership updated",
		slog.String("operation", operation),
		slog.Uint64("list_id", uint64(listID)),
		slog.Uint64("target_user_id", uint64(targetUserID)),
	)
	return target, nil
}

func (s *MembershipService) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// requireSchoolMember fails with NOT_FOUND for an unknown school and
// UNAUTHORIZED when userID is not attached to it.
func requireSchoolMember(ctx context.Context, st repository.Store, schoolID, userID uint) error {
	if _, err := st.Schools.GetByID(ctx, schoolID); err != nil {
		return err
	}
	ok, err := st.Schools.IsMember(ctx, schoolID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewUnauthorizedError("you are not part of this school")
	}
	return nil
}

func requireConfirmedEmail(ctx context.Context, st repository.Store, userID uint) error {
	info, err := st.UserInformation.GetByUserID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewPreconditionFailedError("a confirmed email is required to create a list")
		}
		return err
	}
	if info.EncryptedEmail == nil || !info.EmailConfirmed {
		return models.NewPreconditionFailedError("a confirmed email is required to create a list")
	}
	return nil
}

func requireAdmin(ctx context.Context, st repository.Store, actorID, listID uint) error {
	actor, err := st.Memberships.FindByUserID(ctx, actorID)
	if err != nil {
		return err
	}
	a, ok := actor.Affiliation()
	if !ok || a.ListID != listID {
		return models.NewUnauthorizedError("you are not a member of this list")
	}
	if !a.IsAdmin {
		return models.NewUnauthorizedError("admin rights required")
	}
	return nil
}

func requireWaiting(m *models.Membership) error {
	if a, _ := m.Affiliation(); a.Status != models.MembershipStatusWaiting {
		return models.NewPreconditionFailedError("membership is not waiting for a decision")
	}
	return nil
}

// affiliate applies a to the user's membership row, creating the row on first use.
func affiliate(ctx context.Context, st repository.Store, m *models.Membership, userID uint, a models.Affiliation) (*models.Membership, error) {
	if m == nil {
		m = &models.Membership{UserID: userID}
		m.Affiliate(a)
		return m, st.Memberships.Create(ctx, m)
	}
	m.Affiliate(a)
	return m, st.Memberships.Save(ctx, m)
}

func recordOutcome(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = models.CodeInternal
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			outcome = appErr.Code
		}
	}
	observability.MembershipOperations.WithLabelValues(operation, outcome).Inc()
}
