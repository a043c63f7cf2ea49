// Package memstore is an in-process implementation of the group and profile
// stores. It honors the same conditional-update contracts as the MongoDB
// stores, supports all-or-nothing Run blocks, and can be told to fail a named
// operation so callers can exercise rollback paths.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Operation names accepted by FailNext.
const (
	OpCreateGroup        = "groups.Create"
	OpAddJoinRequest     = "groups.AddJoinRequest"
	OpPromoteJoinRequest = "groups.PromoteJoinRequest"
	OpRemoveJoinRequest  = "groups.RemoveJoinRequest"
	OpAddInvitation      = "groups.AddInvitation"
	OpAcceptInvitation   = "groups.AcceptInvitation"
	OpRemoveMember       = "groups.RemoveMember"
	OpSetAffiliation     = "profiles.SetAffiliation"
	OpUpdateIdentity     = "profiles.UpdateIdentity"
	OpAddNotification    = "profiles.AddNotification"
)

type txKey struct{}

// DB holds every collection behind one lock.
type DB struct {
	txMu sync.Mutex // held for the whole of a Run, or a single op outside one
	mu   sync.Mutex // guards the maps

	groups   map[string]models.Group
	profiles map[string]models.UserProfile
	failures map[string]error
}

func New() *DB {
	return &DB{
		groups:   make(map[string]models.Group),
		profiles: make(map[string]models.UserProfile),
		failures: make(map[string]error),
	}
}

// Groups returns the group store view.
func (db *DB) Groups() *Groups { return &Groups{db: db} }

// Profiles returns the profile store view.
func (db *DB) Profiles() *Profiles { return &Profiles{db: db} }

// FailNext makes the next call of op return err before doing anything.
func (db *DB) FailNext(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[op] = err
}

// Run executes fn with every write either fully applied or fully undone.
// Runs are serialized against each other and against writes made outside a Run.
func (db *DB) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	groups, profiles := cloneGroups(db.groups), cloneProfiles(db.profiles)
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.mu.Lock()
		db.groups, db.profiles = groups, profiles
		db.mu.Unlock()
		return err
	}
	return nil
}

// GroupCount returns the number of stored groups.
func (db *DB) GroupCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.groups)
}

// PutProfile stores p as-is. For seeding.
func (db *DB) PutProfile(p models.UserProfile) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.profiles[p.ID] = cloneProfile(p)
}

// PutGroup stores g as-is. For seeding.
func (db *DB) PutGroup(g models.Group) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.groups[g.ID] = cloneGroup(g)
}

// begin takes the locks needed for one operation and returns the matching
// release func. It fails fast with an injected error for op.
func (db *DB) begin(ctx context.Context, op string) (func(), error) {
	inTx := ctx.Value(txKey{}) != nil
	if !inTx {
		db.txMu.Lock()
	}
	db.mu.Lock()
	release := func() {
		db.mu.Unlock()
		if !inTx {
			db.txMu.Unlock()
		}
	}
	if err := ctx.Err(); err != nil {
		release()
		return nil, err
	}
	if err, ok := db.failures[op]; ok {
		delete(db.failures, op)
		release()
		return nil, err
	}
	return release, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Groups                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

type Groups struct {
	db *DB
}

func (s *Groups) Create(ctx context.Context, g models.Group) (models.Group, error) {
	release, err := s.db.begin(ctx, OpCreateGroup)
	if err != nil {
		return models.Group{}, err
	}
	defer release()

	now := time.Now().UTC()
	if strings.TrimSpace(g.ID) == "" {
		g.ID = primitive.NewObjectID().Hex()
	}
	if _, exists := s.db.groups[g.ID]; exists {
		return models.Group{}, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "duplicate key"}}}
	}
	g.NameCI = text.Fold(g.Name)
	if g.Members == nil {
		g.Members = []string{}
	}
	if g.JoinRequests == nil {
		g.JoinRequests = []string{}
	}
	if g.PendingInvitations == nil {
		g.PendingInvitations = []string{}
	}
	g.CreatedAt, g.UpdatedAt = now, now
	s.db.groups[g.ID] = cloneGroup(g)
	return cloneGroup(g), nil
}

func (s *Groups) GetByID(ctx context.Context, id string) (models.Group, error) {
	release, err := s.db.begin(ctx, "groups.GetByID")
	if err != nil {
		return models.Group{}, err
	}
	defer release()

	g, ok := s.db.groups[id]
	if !ok {
		return models.Group{}, mongo.ErrNoDocuments
	}
	return cloneGroup(g), nil
}

func (s *Groups) ListInvitingEmail(ctx context.Context, email string) ([]models.Group, error) {
	release, err := s.db.begin(ctx, "groups.ListInvitingEmail")
	if err != nil {
		return nil, err
	}
	defer release()

	var out []models.Group
	for _, g := range s.db.groups {
		if g.HasInvitation(email) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameCI != out[j].NameCI {
			return out[i].NameCI < out[j].NameCI
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Groups) AddJoinRequest(ctx context.Context, id, userID, email string) (bool, error) {
	return s.mutate(ctx, OpAddJoinRequest, id, func(g *models.Group) bool {
		if g.HasMember(userID) || g.HasJoinRequest(userID) {
			return false
		}
		g.JoinRequests = append(g.JoinRequests, userID)
		dropInvitation(g, email)
		return true
	})
}

func (s *Groups) PromoteJoinRequest(ctx context.Context, id, userID, email string) (bool, error) {
	return s.mutate(ctx, OpPromoteJoinRequest, id, func(g *models.Group) bool {
		if !g.HasJoinRequest(userID) {
			return false
		}
		g.JoinRequests = without(g.JoinRequests, userID)
		g.Members = addToSet(g.Members, userID)
		dropInvitation(g, email)
		return true
	})
}

func (s *Groups) RemoveJoinRequest(ctx context.Context, id, userID, email string) (bool, error) {
	return s.mutate(ctx, OpRemoveJoinRequest, id, func(g *models.Group) bool {
		if !g.HasJoinRequest(userID) {
			return false
		}
		g.JoinRequests = without(g.JoinRequests, userID)
		dropInvitation(g, email)
		return true
	})
}

func (s *Groups) AddInvitation(ctx context.Context, id, email string) (bool, error) {
	return s.mutate(ctx, OpAddInvitation, id, func(g *models.Group) bool {
		if g.HasInvitation(email) {
			return false
		}
		g.PendingInvitations = append(g.PendingInvitations, email)
		return true
	})
}

func (s *Groups) AcceptInvitation(ctx context.Context, id, email, userID string) (bool, error) {
	return s.mutate(ctx, OpAcceptInvitation, id, func(g *models.Group) bool {
		if !g.HasInvitation(email) {
			return false
		}
		g.PendingInvitations = without(g.PendingInvitations, email)
		g.JoinRequests = without(g.JoinRequests, userID)
		g.Members = addToSet(g.Members, userID)
		return true
	})
}

func (s *Groups) RemoveMember(ctx context.Context, id, userID, email string) (bool, error) {
	return s.mutate(ctx, OpRemoveMember, id, func(g *models.Group) bool {
		if g.AdminID == userID || !g.HasMember(userID) {
			return false
		}
		g.Members = without(g.Members, userID)
		dropInvitation(g, email)
		return true
	})
}

func (s *Groups) mutate(ctx context.Context, op, id string, apply func(g *models.Group) bool) (bool, error) {
	release, err := s.db.begin(ctx, op)
	if err != nil {
		return false, err
	}
	defer release()

	g, ok := s.db.groups[id]
	if !ok {
		return false, nil
	}
	g = cloneGroup(g)
	if !apply(&g) {
		return false, nil
	}
	g.UpdatedAt = time.Now().UTC()
	s.db.groups[id] = g
	return true, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Profiles                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type Profiles struct {
	db *DB
}

func (s *Profiles) GetByID(ctx context.Context, id string) (models.UserProfile, error) {
	release, err := s.db.begin(ctx, "profiles.GetByID")
	if err != nil {
		return models.UserProfile{}, err
	}
	defer release()

	p, ok := s.db.profiles[id]
	if !ok {
		return models.UserProfile{}, mongo.ErrNoDocuments
	}
	return cloneProfile(p), nil
}

func (s *Profiles) GetByEmail(ctx context.Context, email string) (models.UserProfile, error) {
	release, err := s.db.begin(ctx, "profiles.GetByEmail")
	if err != nil {
		return models.UserProfile{}, err
	}
	defer release()

	email = normalize.Email(email)
	for _, p := range s.db.profiles {
		if p.Email != "" && p.Email == email {
			return cloneProfile(p), nil
		}
	}
	return models.UserProfile{}, mongo.ErrNoDocuments
}

func (s *Profiles) ListByIDs(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	release, err := s.db.begin(ctx, "profiles.ListByIDs")
	if err != nil {
		return nil, err
	}
	defer release()

	var out []models.UserProfile
	for _, id := range ids {
		if p, ok := s.db.profiles[id]; ok {
			out = append(out, cloneProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Profiles) SetAffiliation(ctx context.Context, id string, groupID *string, role string) error {
	return s.mutate(ctx, OpSetAffiliation, id, func(p *models.UserProfile) {
		if groupID == nil {
			p.GroupID = nil
		} else {
			gid := *groupID
			p.GroupID = &gid
		}
		p.Role = role
	})
}

func (s *Profiles) UpdateIdentity(ctx context.Context, id, name, email string) error {
	return s.mutate(ctx, OpUpdateIdentity, id, func(p *models.UserProfile) {
		if n := normalize.Name(name); n != "" {
			p.Name = n
		}
		if e := normalize.Email(email); e != "" {
			p.Email = e
		}
	})
}

func (s *Profiles) AddNotification(ctx context.Context, id string, n models.Notification) error {
	return s.mutate(ctx, OpAddNotification, id, func(p *models.UserProfile) {
		p.Notifications = append(p.Notifications, n)
	})
}

func (s *Profiles) mutate(ctx context.Context, op, id string, apply func(p *models.UserProfile)) error {
	release, err := s.db.begin(ctx, op)
	if err != nil {
		return err
	}
	defer release()

	p, ok := s.db.profiles[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	p = cloneProfile(p)
	apply(&p)
	p.UpdatedAt = time.Now().UTC()
	s.db.profiles[id] = p
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func dropInvitation(g *models.Group, email string) {
	if email != "" {
		g.PendingInvitations = without(g.PendingInvitations, email)
	}
}

func without(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func addToSet(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneGroup(g models.Group) models.Group {
	g.Members = cloneStrings(g.Members)
	g.JoinRequests = cloneStrings(g.JoinRequests)
	g.PendingInvitations = cloneStrings(g.PendingInvitations)
	return g
}

func cloneProfile(p models.UserProfile) models.UserProfile {
	if p.GroupID != nil {
		gid := *p.GroupID
		p.GroupID = &gid
	}
	p.ActivityLogs = append([]models.ActivityLog(nil), p.ActivityLogs...)
	p.FileHistory = append([]models.FileHistoryItem(nil), p.FileHistory...)
	p.Notifications = append([]models.Notification(nil), p.Notifications...)
	if p.Extra != nil {
		extra := make(map[string]string, len(p.Extra))
		for k, v := range p.Extra {
			extra[k] = v
		}
		p.Extra = extra
	}
	return p
}

func cloneGroups(in map[string]models.Group) map[string]models.Group {
	out := make(map[string]models.Group, len(in))
	for k, v := range in {
		out[k] = cloneGroup(v)
	}
	return out
}

func cloneProfiles(in map[string]models.UserProfile) map[string]models.UserProfile {
	out := make(map[string]models.UserProfile, len(in))
	for k, v := range in {
		out[k] = cloneProfile(v)
	}
	return out
}
