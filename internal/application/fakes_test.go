package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/booking"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/inventory"
	"github.com/VishalSolanki135/Capsule-Cabs/internal/domain/route"
	redisinfra "github.com/VishalSolanki135/Capsule-Cabs/internal/infrastructure/redis"
)

// === インメモリフェイク実装 ===

var errSaveFailed = errors.New("保存に失敗しました")

// testRoute はテスト用の路線（座席6、窓側プレミアムあり、1席ブロック）
func testRoute() *route.Route {
	return &route.Route{
		ID:            "route-1",
		Name:          "Mumbai Express",
		Origin:        "Mumbai",
		Destination:   "Pune",
		DepartureTime: "22:30",
		ArrivalTime:   "02:30",
		BaseFare:      500,
		WindowPremium: 100,
		SeatTemplate: []route.SeatTemplateEntry{
			{SeatNumber: "1", SeatType: route.SeatTypeWindow},
			{SeatNumber: "2", SeatType: route.SeatTypeAisle},
			{SeatNumber: "3", SeatType: route.SeatTypeAisle},
			{SeatNumber: "4", SeatType: route.SeatTypeWindow},
			{SeatNumber: "5", SeatType: route.SeatTypeAisle},
			{SeatNumber: "6", SeatType: route.SeatTypeSleeper, IsBlocked: true},
		},
		IsActive: true,
	}
}

// fakeInventoryRepo はドキュメントストアのインメモリ実装。
// Get/Saveでディープコピーし、保存せずに行った変更が漏れないようにする。
type fakeInventoryRepo struct {
	mu       sync.Mutex
	docs     map[inventory.Key][]byte
	failSave bool
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{docs: make(map[inventory.Key][]byte)}
}

func (r *fakeInventoryRepo) Get(_ context.Context, routeID, travelDate string) (*inventory.SeatInventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[inventory.Key{RouteID: routeID, TravelDate: travelDate}]
	if !ok {
		return nil, inventory.ErrInventoryNotFound
	}
	var inv inventory.SeatInventory
	if err := json.Unmarshal(doc, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *fakeInventoryRepo) Create(_ context.Context, inv *inventory.SeatInventory) error {
	doc, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[inventory.Key{RouteID: inv.RouteID, TravelDate: inv.TravelDate}] = doc
	return nil
}

func (r *fakeInventoryRepo) Save(_ context.Context, inv *inventory.SeatInventory) error {
	if r.failSave {
		return errSaveFailed
	}
	doc, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := inventory.Key{RouteID: inv.RouteID, TravelDate: inv.TravelDate}
	if _, ok := r.docs[key]; !ok {
		return inventory.ErrInventoryNotFound
	}
	r.docs[key] = doc
	return nil
}

func (r *fakeInventoryRepo) FindKeysWithExpiredLocks(ctx context.Context, now time.Time) ([]inventory.Key, error) {
	r.mu.Lock()
	keys := make([]inventory.Key, 0, len(r.docs))
	for k := range r.docs {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	var result []inventory.Key
	for _, k := range keys {
		inv, err := r.Get(ctx, k.RouteID, k.TravelDate)
		if err != nil {
			return nil, err
		}
		if inv.HasExpiredLocks(now) {
			result = append(result, k)
		}
	}
	return result, nil
}

func (r *fakeInventoryRepo) DeleteByRoute(_ context.Context, routeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.docs {
		if k.RouteID == routeID {
			delete(r.docs, k)
		}
	}
	return nil
}

// fakeRouteRepo は路線リポジトリのインメモリ実装
type fakeRouteRepo struct {
	routes map[string]*route.Route
}

func newFakeRouteRepo(routes ...*route.Route) *fakeRouteRepo {
	m := make(map[string]*route.Route)
	for _, rt := range routes {
		m[rt.ID] = rt
	}
	return &fakeRouteRepo{routes: m}
}

func (r *fakeRouteRepo) GetByID(_ context.Context, id string) (*route.Route, error) {
	rt, ok := r.routes[id]
	if !ok {
		return nil, route.ErrRouteNotFound
	}
	return rt, nil
}

func (r *fakeRouteRepo) GetActive(_ context.Context) ([]*route.Route, error) {
	var result []*route.Route
	for _, rt := range r.routes {
		if rt.IsActive {
			result = append(result, rt)
		}
	}
	return result, nil
}

// fakeLockManager はプロセス内の排他でリースを模倣する
type fakeLockManager struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
	releases int
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]bool)}
}

func (m *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, redisinfra.ErrLockNotAcquired
	}
	m.held[key] = true
	m.acquires++
	return &fakeLease{manager: m, key: key}, nil
}

// hold は外部からリースを押さえた状態を作る（競合テスト用）
func (m *fakeLockManager) hold(key string) func() {
	m.mu.Lock()
	m.held[key] = true
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.held, key)
		m.mu.Unlock()
	}
}

type fakeLease struct {
	manager *fakeLockManager
	key     string
}

func (l *fakeLease) Release(_ context.Context) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()
	delete(l.manager.held, l.key)
	l.manager.releases++
	return nil
}

// fakeHoldsIndex はホールド索引のインメモリ実装
type fakeHoldsIndex struct {
	mu      sync.Mutex
	records map[string]*redisinfra.HoldRecord
}

func newFakeHoldsIndex() *fakeHoldsIndex {
	return &fakeHoldsIndex{records: make(map[string]*redisinfra.HoldRecord)}
}

func (h *fakeHoldsIndex) Get(_ context.Context, userID string) (*redisinfra.HoldRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	record, ok := h.records[userID]
	if !ok {
		return nil, redisinfra.ErrHoldNotFound
	}
	return record, nil
}

func (h *fakeHoldsIndex) Set(_ context.Context, userID string, record *redisinfra.HoldRecord, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[userID] = record
	return nil
}

func (h *fakeHoldsIndex) Delete(_ context.Context, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, userID)
	return nil
}

// fakeBookingRepo は予約リポジトリのインメモリ実装
type fakeBookingRepo struct {
	mu         sync.Mutex
	bookings   map[string]*booking.Booking
	failCreate bool
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*booking.Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, b *booking.Booking) error {
	if r.failCreate {
		return errSaveFailed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
	return nil
}

func (r *fakeBookingRepo) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return b, nil
}

func (r *fakeBookingRepo) GetByUserID(_ context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*booking.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (r *fakeBookingRepo) Update(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; !ok {
		return booking.ErrBookingNotFound
	}
	r.bookings[b.ID] = b
	return nil
}

func (r *fakeBookingRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bookings[id]
	return ok, nil
}
