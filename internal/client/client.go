// Package client wires the session store, synchronizers, gateway, onboarding and alerts of
// one signed-in device into a single object the API layer drives.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/fampantry/internal/alert"
	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/docstore"
	"github.com/vbonduro/fampantry/internal/domain"
	"github.com/vbonduro/fampantry/internal/gateway"
	"github.com/vbonduro/fampantry/internal/lookup"
	"github.com/vbonduro/fampantry/internal/onboarding"
	"github.com/vbonduro/fampantry/internal/record"
	"github.com/vbonduro/fampantry/internal/session"
	"github.com/vbonduro/fampantry/internal/syncer"
)

// Observer collects delivery and mutation outcomes. *metrics.Metrics implements it.
type Observer interface {
	SnapshotReceived(list string)
	SubscriptionFailed(list string)
	MutationCompleted(op string, err error)
}

type Kind string

const (
	KindSession   Kind = "session"
	KindInventory Kind = "inventory"
	KindGroceries Kind = "groceries"
	KindGroup     Kind = "group"
	KindAlerts    Kind = "alerts"
)

// Event carries the full latest state of one part of the client, so a consumer that
// misses events catches up on the next one of the same kind.
type Event struct {
	Kind    Kind `json:"kind"`
	Payload any  `json:"payload"`
}

type SessionView struct {
	Identity         *domain.Identity `json:"identity"`
	GroupID          string           `json:"groupId"`
	AuthResolving    bool             `json:"authResolving"`
	ProfileResolving bool             `json:"profileResolving"`
	Ready            bool             `json:"ready"`
	Error            string           `json:"error,omitempty"`
}

type ListView[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Filter  string `json:"filter"`
	Version uint64 `json:"version"`
	Error   string `json:"error,omitempty"`
}

type GroupView struct {
	Group   *domain.Group `json:"group"`
	Loading bool          `json:"loading"`
	Version uint64        `json:"version"`
	Error   string        `json:"error,omitempty"`
}

type AlertsView struct {
	Alerts    []alert.Alert `json:"alerts"`
	Threshold int           `json:"threshold"`
}

type Deps struct {
	Docs     docstore.Store
	Identity auth.Provider
	Lookup   *lookup.Service
	Observer Observer
	Logger   *slog.Logger
}

type Client struct {
	logger *slog.Logger
	docs   docstore.Store
	now    func() time.Time

	auth      *auth.State
	session   *session.Store
	inventory *syncer.Inventory
	// stock is the unfiltered inventory that alerts are computed from.
	stock     *syncer.Inventory
	groceries *syncer.Groceries
	group     *syncer.Group
	gateway   *gateway.Gateway
	resolver  *onboarding.Resolver
	lookup    *lookup.Service

	alertMu sync.Mutex
	alerts  AlertsView

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextID    int
	stops     []func()
	closed    bool
}

func New(deps Deps) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	obs := deps.Observer

	c := &Client{
		logger:    logger,
		docs:      deps.Docs,
		now:       time.Now,
		auth:      auth.NewState(deps.Identity),
		inventory: syncer.NewInventory(deps.Docs, logger, obs),
		stock:     syncer.NewInventory(deps.Docs, logger, nil),
		groceries: syncer.NewGroceries(deps.Docs, logger, obs),
		group:     syncer.NewGroup(deps.Docs, logger, obs),
		resolver:  onboarding.NewResolver(deps.Docs, logger),
		lookup:    deps.Lookup,
		alerts:    AlertsView{Alerts: []alert.Alert{}, Threshold: domain.DefaultLowStockThreshold},
		listeners: make(map[int]func(Event)),
	}
	c.session = session.New(deps.Docs, logger, obs)
	c.gateway = gateway.New(deps.Docs, c.session, obs, logger)

	c.stops = append(c.stops,
		c.inventory.OnChange(func(st syncer.State[domain.InventoryItem]) {
			c.emit(Event{Kind: KindInventory, Payload: listView(st)})
		}),
		c.stock.OnChange(func(syncer.State[domain.InventoryItem]) { c.refreshAlerts() }),
		c.groceries.OnChange(func(st syncer.State[domain.GroceryItem]) {
			c.emit(Event{Kind: KindGroceries, Payload: listView(st)})
		}),
		c.group.OnChange(func(st syncer.DocumentState[domain.Group]) {
			c.emit(Event{Kind: KindGroup, Payload: groupView(st)})
			c.refreshAlerts()
		}),
		c.session.OnChange(c.onSession),
	)
	c.session.Init(c.auth)
	return c
}

// onSession re-scopes every synchronizer. Nothing subscribes until both loading flags
// are down.
func (c *Client) onSession(st session.State) {
	groupID := ""
	if st.Ready() && st.Identity != nil {
		groupID = st.GroupID
	}
	c.inventory.SetGroup(groupID)
	c.stock.SetGroup(groupID)
	c.groceries.SetGroup(groupID)
	c.group.SetGroup(groupID)
	c.emit(Event{Kind: KindSession, Payload: sessionView(st)})
}

func (c *Client) refreshAlerts() {
	c.alertMu.Lock()
	defer c.alertMu.Unlock()

	items := c.stock.State().Items
	threshold := alert.Threshold(c.group.State().Value)
	view := AlertsView{Alerts: alert.Evaluate(items, threshold, c.now()), Threshold: threshold}
	c.alerts = view
	c.emit(Event{Kind: KindAlerts, Payload: view})
}

// Subscribe registers fn for every event and replays the current state of each kind to
// it. Events are delivered on the goroutine that caused them, so fn must not block.
func (c *Client) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	fn(Event{Kind: KindSession, Payload: c.Session()})
	fn(Event{Kind: KindInventory, Payload: c.Inventory()})
	fn(Event{Kind: KindGroceries, Payload: c.Groceries()})
	fn(Event{Kind: KindGroup, Payload: c.Group()})
	fn(Event{Kind: KindAlerts, Payload: c.Alerts()})

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// SignUp registers a new identity and writes its profile record.
func (c *Client) SignUp(ctx context.Context, email, password string) (domain.Identity, error) {
	id, err := c.auth.SignUp(ctx, email, password)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := c.resolver.CreateProfile(ctx, id); err != nil {
		return id, err
	}
	return id, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	return c.auth.SignIn(ctx, email, password)
}

func (c *Client) Restore(ctx context.Context, identityID string) (domain.Identity, error) {
	return c.auth.Restore(ctx, identityID)
}

func (c *Client) SignOut() {
	c.auth.SignOut()
}

func (c *Client) Session() SessionView {
	return sessionView(c.session.State())
}

func (c *Client) identity() domain.Identity {
	if id := c.session.State().Identity; id != nil {
		return *id
	}
	return domain.Identity{}
}

func (c *Client) CreateFamily(ctx context.Context, name string) (string, error) {
	return c.resolver.CreateGroup(ctx, c.identity(), name)
}

func (c *Client) JoinFamily(ctx context.Context, code string) (*domain.Group, error) {
	return c.resolver.JoinGroup(ctx, c.identity(), code)
}

type Family struct {
	Group   *domain.Group       `json:"group"`
	Members []onboarding.Member `json:"members"`
}

// Family reads the current group and resolves its members' emails.
func (c *Client) Family(ctx context.Context) (*Family, error) {
	const op = "client.family"
	st := c.session.State()
	if st.Identity == nil {
		return nil, domain.Precondition(op, "You need to sign in first.")
	}
	if st.GroupID == "" {
		return nil, domain.Precondition(op, "Join or create a family first.")
	}
	g, err := c.resolver.Group(ctx, st.GroupID)
	if err != nil {
		return nil, domain.Mutation(op, "Could not load the family.", err)
	}
	if g == nil {
		return nil, domain.NotFound(op, "Family not found")
	}
	members, err := c.resolver.Members(ctx, st.GroupID)
	if err != nil {
		return nil, err
	}
	return &Family{Group: g, Members: members}, nil
}

func (c *Client) SetLowStockThreshold(ctx context.Context, threshold int) error {
	return c.gateway.SetLowStockThreshold(ctx, threshold)
}

func (c *Client) Inventory() ListView[domain.InventoryItem] {
	return listView(c.inventory.State())
}

// FilterInventory narrows the inventory view to one category; "All" or "" clears it.
func (c *Client) FilterInventory(category string) {
	c.inventory.SetFilter(category)
}

func (c *Client) Groceries() ListView[domain.GroceryItem] {
	return listView(c.groceries.State())
}

func (c *Client) FilterGroceries(category string) {
	c.groceries.SetFilter(category)
}

func (c *Client) Group() GroupView {
	return groupView(c.group.State())
}

func (c *Client) Alerts() AlertsView {
	c.alertMu.Lock()
	defer c.alertMu.Unlock()
	return c.alerts
}

func (c *Client) AddInventoryItem(ctx context.Context, in gateway.NewInventoryItem) (string, error) {
	return c.gateway.AddInventoryItem(ctx, in)
}

func (c *Client) ReplaceInventoryItem(ctx context.Context, itemID string, in gateway.NewInventoryItem) error {
	return c.gateway.ReplaceInventoryItem(ctx, itemID, in)
}

func (c *Client) DeleteInventoryItem(ctx context.Context, itemID string) error {
	return c.gateway.DeleteInventoryItem(ctx, itemID)
}

// AdjustQuantity applies delta to the quantity of the item as this device last saw it.
func (c *Client) AdjustQuantity(ctx context.Context, itemID string, delta int) error {
	item, err := c.inventoryItem(ctx, "client.adjustQuantity", itemID)
	if err != nil {
		return err
	}
	return c.gateway.UpdateQuantity(ctx, item, delta)
}

func (c *Client) AddToGrocery(ctx context.Context, inventoryID string) (string, error) {
	item, err := c.inventoryItem(ctx, "client.addToGrocery", inventoryID)
	if err != nil {
		return "", err
	}
	return c.gateway.AddToGroceryFromInventory(ctx, item)
}

func (c *Client) AddGroceryItem(ctx context.Context, in gateway.NewGroceryItem) (string, error) {
	return c.gateway.AddGroceryItem(ctx, in)
}

func (c *Client) ToggleGrocery(ctx context.Context, itemID string) error {
	const op = "client.toggleGrocery"
	for _, it := range c.groceries.State().Items {
		if it.ID == itemID {
			return c.gateway.ToggleCompleted(ctx, it)
		}
	}
	groupID := c.session.State().GroupID
	if groupID == "" {
		return domain.Precondition(op, "Join or create a family first.")
	}
	doc, err := c.fetch(ctx, op, docstore.GroceryCollection(groupID), itemID)
	if err != nil {
		return err
	}
	return c.gateway.ToggleCompleted(ctx, record.GroceryItem(*doc))
}

func (c *Client) DeleteGroceryItem(ctx context.Context, itemID string) error {
	return c.gateway.DeleteGroceryItem(ctx, itemID)
}

// Lookup resolves a scanned code. It never fails; unknown products get a placeholder.
func (c *Client) Lookup(ctx context.Context, code string) lookup.Result {
	if c.lookup == nil {
		return lookup.NewService(nil, nil, 0, c.logger).Resolve(ctx, code)
	}
	return c.lookup.Resolve(ctx, code)
}

// inventoryItem prefers the unfiltered snapshot and falls back to a read, since the
// snapshot may lag a write this device has not yet observed.
func (c *Client) inventoryItem(ctx context.Context, op, itemID string) (domain.InventoryItem, error) {
	for _, it := range c.stock.State().Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	groupID := c.session.State().GroupID
	if groupID == "" {
		return domain.InventoryItem{}, domain.Precondition(op, "Join or create a family first.")
	}
	doc, err := c.fetch(ctx, op, docstore.InventoryCollection(groupID), itemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return record.InventoryItem(*doc), nil
}

func (c *Client) fetch(ctx context.Context, op, collection, itemID string) (*docstore.Document, error) {
	if itemID == "" {
		return nil, domain.NotFound(op, "That item no longer exists.")
	}
	path := docstore.Join(collection, itemID)
	if _, _, err := docstore.Split(path); err != nil {
		return nil, domain.NotFound(op, "That item no longer exists.")
	}
	doc, err := c.docs.Get(ctx, path)
	if err != nil {
		return nil, domain.Mutation(op, "Could not load the item.", err)
	}
	if doc == nil {
		return nil, domain.NotFound(op, "That item no longer exists.")
	}
	return doc, nil
}

// Close cancels every subscription. The client must not be used afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stops := c.stops
	c.stops = nil
	c.listeners = make(map[int]func(Event))
	c.mu.Unlock()

	c.session.Teardown()
	c.inventory.Close()
	c.stock.Close()
	c.groceries.Close()
	c.group.Close()
	for _, stop := range stops {
		stop()
	}
}

func sessionView(st session.State) SessionView {
	v := SessionView{
		Identity:         st.Identity,
		GroupID:          st.GroupID,
		AuthResolving:    st.AuthResolving,
		ProfileResolving: st.ProfileResolving,
		Ready:            st.Ready(),
	}
	if st.Err != nil {
		v.Error = domain.Message(st.Err)
	}
	return v
}

func listView[T any](st syncer.State[T]) ListView[T] {
	v := ListView[T]{Items: st.Items, Loading: st.Loading, Filter: st.Scope.Filter, Version: st.Version}
	if v.Items == nil {
		v.Items = []T{}
	}
	if st.Err != nil {
		v.Error = domain.Message(st.Err)
	}
	return v
}

func groupView(st syncer.DocumentState[domain.Group]) GroupView {
	v := GroupView{Group: st.Value, Loading: st.Loading, Version: st.Version}
	if st.Err != nil {
		v.Error = domain.Message(st.Err)
	}
	return v
}
