package world

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/siohaza/coas/internal/envelope"
	"github.com/siohaza/coas/internal/maps"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/storage"
	"github.com/siohaza/coas/internal/weapon"
	"github.com/siohaza/coas/pkg/config"
	"github.com/siohaza/coas/pkg/lua"
)

const mainMap = `map main
maxx 100
maxy 20
tile 0 100 0 0 grass
tile 20 25 10 10 wood
tile 50 50 0 10 brick_wall
zone 0 10 0 5 the meadow
`

const safeMap = `map safe_zone
maxx 60
tile 0 60 0 0 sand
safe_zone 0 60 0 20
`

type sent struct {
	conn player.ConnID
	msg  protocol.Message
}

type fakeOutbox struct {
	t            *testing.T
	cipher       *envelope.Cipher
	sent         []sent
	disconnected []player.ConnID
}

func (o *fakeOutbox) Send(conn player.ConnID, data []byte) error {
	plain, err := o.cipher.Open(data)
	if err != nil {
		o.t.Fatalf("outbound payload does not open: %v", err)
	}
	msg, err := protocol.Unmarshal(plain)
	if err != nil {
		o.t.Fatalf("outbound payload does not decode: %v", err)
	}
	o.sent = append(o.sent, sent{conn: conn, msg: msg})
	return nil
}

func (o *fakeOutbox) Disconnect(conn player.ConnID) {
	o.disconnected = append(o.disconnected, conn)
}

func (o *fakeOutbox) to(conn player.ConnID) []protocol.Message {
	var msgs []protocol.Message
	for _, s := range o.sent {
		if s.conn == conn {
			msgs = append(msgs, s.msg)
		}
	}
	return msgs
}

func (o *fakeOutbox) saidTo(conn player.ConnID, text string) bool {
	for _, msg := range o.to(conn) {
		if say, ok := msg.(*protocol.Say); ok && say.Text == text {
			return true
		}
	}
	return false
}

func (o *fakeOutbox) played(sound string) bool {
	for _, s := range o.sent {
		if play, ok := s.msg.(*protocol.Play); ok && play.Sound == sound {
			return true
		}
	}
	return false
}

func (o *fakeOutbox) wasDisconnected(conn player.ConnID) bool {
	for _, c := range o.disconnected {
		if c == conn {
			return true
		}
	}
	return false
}

func (o *fakeOutbox) reset() {
	o.sent = nil
	o.disconnected = nil
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type harness struct {
	w     *World
	out   *fakeOutbox
	clock *clock
	conns player.ConnID
}

func newHarness(t *testing.T, configure func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	if configure != nil {
		configure(cfg)
	}

	network, err := envelope.New(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	sealed, err := envelope.New(bytes.Repeat([]byte{2}, 32))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	store, err := storage.Open(":memory:", sealed)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	store.HashCost = bcrypt.MinCost
	t.Cleanup(func() { _ = store.Close() })

	mapStore := maps.NewStore(t.TempDir())
	if err := mapStore.Write("main", mainMap); err != nil {
		t.Fatalf("failed to write map: %v", err)
	}
	if err := mapStore.Write("safe_zone", safeMap); err != nil {
		t.Fatalf("failed to write map: %v", err)
	}
	grids, err := mapStore.LoadAll()
	if err != nil {
		t.Fatalf("failed to load maps: %v", err)
	}

	weapons, err := weapon.NewTable(cfg.Weapons)
	if err != nil {
		t.Fatalf("failed to build weapon table: %v", err)
	}

	out := &fakeOutbox{t: t, cipher: network}
	clk := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	w, err := New(Options{
		Config:  cfg,
		Store:   store,
		Maps:    mapStore,
		Grids:   grids,
		Weapons: weapons,
		Cipher:  network,
		Outbox:  out,
		Now:     clk.Now,
		Rand:    rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("failed to create world: %v", err)
	}
	return &harness{w: w, out: out, clock: clk}
}

func (h *harness) connect() player.ConnID {
	h.conns++
	h.w.Connect(h.conns, "127.0.0.1:5000")
	return h.conns
}

func login(name string) *protocol.Login {
	return &protocol.Login{User: name, Password: "secret", ID: name + "-device", Version: "0.1.0"}
}

func (h *harness) register(t *testing.T, name string) {
	t.Helper()
	conn := h.connect()
	err := h.w.CreateAccount(conn, &protocol.Create{User: name, Password: "secret", ID: name + "-device"})
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
}

// join creates the account and logs it in at x on the main map.
func (h *harness) join(t *testing.T, name string, x int) *player.Session {
	t.Helper()
	h.register(t, name)
	conn := h.connect()
	if err := h.w.Dispatch(conn, login(name)); err != nil {
		t.Fatalf("login of %s failed: %v", name, err)
	}
	s, ok := h.w.players.Get(conn)
	if !ok {
		t.Fatalf("%s is not online after login: %v", name, h.out.to(conn))
	}
	s.Data.X = x
	s.Data.Y = 0
	return s
}

func (h *harness) tick(t *testing.T, d time.Duration) {
	t.Helper()
	h.clock.advance(d)
	if err := h.w.Tick(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
}

func (h *harness) chat(t *testing.T, s *player.Session, text string) error {
	t.Helper()
	return h.w.Dispatch(s.Conn, &protocol.Chat{Message: text})
}

func TestLoginSendsConnectedAndMap(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 0)

	msgs := h.out.to(alice.Conn)
	if len(msgs) < 2 {
		t.Fatalf("expected connected and map, got %v", msgs)
	}
	if _, ok := msgs[0].(*protocol.Connected); !ok {
		t.Fatalf("expected Connected first, got %T", msgs[0])
	}
	parse, ok := msgs[1].(*protocol.ParseMap)
	if !ok || parse.Data != mainMap {
		t.Fatalf("expected main map text, got %#v", msgs[1])
	}
	if alice.Data.ID != "alice-device" {
		t.Fatalf("device id not recorded: %q", alice.Data.ID)
	}
	if h.w.Peak() != 1 {
		t.Fatalf("expected peak 1, got %d", h.w.Peak())
	}
}

func TestDuplicateLoginIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 5)

	conn := h.connect()
	if _, err := h.w.Authenticate(conn, login("ALICE")); !errors.Is(err, ErrAlreadyOnline) {
		t.Fatalf("expected ErrAlreadyOnline, got %v", err)
	}
	if err := h.w.Dispatch(conn, login("alice")); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	msgs := h.out.to(conn)
	reply, ok := msgs[len(msgs)-1].(*protocol.Error)
	if !ok || reply.Reason != ErrAlreadyOnline.Error() {
		t.Fatalf("expected AlreadyOnline reply, got %#v", msgs[len(msgs)-1])
	}
	if s, _ := h.w.players.GetByName("alice"); s != alice || h.w.Online() != 1 {
		t.Fatalf("existing session was disturbed")
	}
}

func TestLoginRejectsBadCredentialsAndOldClients(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Server.Version = "1.2.0" })
	h.register(t, "alice")

	bad := login("alice")
	bad.Password = "wrong"
	if _, err := h.w.Authenticate(h.connect(), bad); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	old := login("alice")
	old.Version = "1.1.9"
	_, err := h.w.Authenticate(h.connect(), old)
	var ve *VersionError
	if !errors.As(err, &ve) || ve.Client != "1.1.9" || ve.Server != "1.2.0" {
		t.Fatalf("expected VersionError, got %v", err)
	}

	current := login("alice")
	current.Version = "1.2.0"
	if _, err := h.w.Authenticate(h.connect(), current); err != nil {
		t.Fatalf("expected current client to log in, got %v", err)
	}
}

func TestCreateRejectsTakenName(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "alice")

	err := h.w.CreateAccount(h.connect(), &protocol.Create{User: "Alice", Password: "other"})
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestGuestMessagesAreIgnored(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.connect()

	for _, msg := range []protocol.Message{&protocol.Fire{}, &protocol.Chat{Message: "/save"}, &protocol.Move{X: protocol.Int32(3)}} {
		if err := h.w.Dispatch(conn, msg); err != nil {
			t.Fatalf("dispatch of %T failed: %v", msg, err)
		}
	}
	if len(h.out.sent) != 0 || len(h.w.projectiles) != 0 {
		t.Fatalf("guest messages had effects: %v", h.out.sent)
	}

	if err := h.w.Dispatch(conn, &protocol.Ping{}); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if msgs := h.out.to(conn); len(msgs) != 1 || msgs[0].Kind() != protocol.KindPong {
		t.Fatalf("expected pong, got %v", msgs)
	}
}

func TestLoginTimeoutDisconnects(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.connect()

	h.tick(t, 119*time.Second)
	if h.out.wasDisconnected(conn) {
		t.Fatalf("disconnected before the timeout")
	}
	h.tick(t, 2*time.Second)
	if !h.out.wasDisconnected(conn) {
		t.Fatalf("expected idle connection to be dropped")
	}
}

func TestAdminBanOfOnlinePlayer(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.join(t, "admin", 0)
	admin.Data.Admin = true
	bob := h.join(t, "bob", 3)

	if err := h.chat(t, admin, "/ban bob"); err != nil {
		t.Fatalf("ban failed: %v", err)
	}
	if !h.out.wasDisconnected(bob.Conn) {
		t.Fatalf("expected bob to be disconnected")
	}
	if _, ok := h.w.players.GetByName("bob"); ok {
		t.Fatalf("bob is still online")
	}
	if !h.w.bans.IsBanned("", "bob-device") {
		t.Fatalf("expected a permanent ban on bob's device")
	}

	_, err := h.w.Authenticate(h.connect(), login("bob"))
	var be *BannedError
	if !errors.As(err, &be) || be.Temporary {
		t.Fatalf("expected permanent ban, got %v", err)
	}

	// banning an offline account again lifts the ban
	if err := h.chat(t, admin, "/ban bob"); err != nil {
		t.Fatalf("unban failed: %v", err)
	}
	if h.w.bans.IsBanned("bob", "") {
		t.Fatalf("expected ban to be lifted")
	}
}

func TestTimedBanExpires(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.join(t, "admin", 0)
	admin.Data.Admin = true
	h.join(t, "bob", 3)

	if err := h.chat(t, admin, "/timed_ban bob 1"); err != nil {
		t.Fatalf("timed ban failed: %v", err)
	}

	_, err := h.w.Authenticate(h.connect(), login("bob"))
	var be *BannedError
	if !errors.As(err, &be) || !be.Temporary || be.Remaining != time.Minute {
		t.Fatalf("expected a one minute temporary ban, got %v", err)
	}
	if !strings.Contains(be.Error(), "1 minute") {
		t.Fatalf("expected remaining time in message, got %q", be.Error())
	}

	h.tick(t, time.Minute)
	if _, err := h.w.Authenticate(h.connect(), login("bob")); err != nil {
		t.Fatalf("expected login after expiry, got %v", err)
	}
}

func TestTimedBanRejectsOverlongDuration(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.join(t, "admin", 0)
	admin.Data.Admin = true
	bob := h.join(t, "bob", 3)

	if err := h.chat(t, admin, "/timed_ban bob 200000000"); err != nil {
		t.Fatalf("timed ban failed: %v", err)
	}
	if h.out.wasDisconnected(bob.Conn) {
		t.Fatalf("bob was dropped by a rejected ban")
	}
	if len(h.w.bans.GetAll()) != 0 {
		t.Fatalf("an overflowing ban was recorded")
	}
	if !h.out.saidTo(admin.Conn, "Error in second argument(Time), Reason: at most 153722867 minutes") {
		t.Fatalf("admin was not told why the ban was refused")
	}

	if err := h.chat(t, admin, "/timed_ban bob 153722867"); err != nil {
		t.Fatalf("timed ban failed: %v", err)
	}
	h.tick(t, 24*time.Hour)
	_, err := h.w.Authenticate(h.connect(), login("bob"))
	var be *BannedError
	if !errors.As(err, &be) || !be.Temporary || be.Remaining <= 0 {
		t.Fatalf("expected the longest ban to hold, got %v", err)
	}
}

func lastBuffer(msgs []protocol.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if b, ok := msgs[i].(*protocol.Buffer); ok {
			return b.Text
		}
	}
	return ""
}

func TestHelpListsPermittedCommands(t *testing.T) {
	h := newHarness(t, nil)
	api := lua.NewGameAPI(scriptHost{h.w})
	for _, code := range []string{
		"name = \"wave\"\ndescription = \"waves\"\nfunction execute(p, a) return \"hi\" end\n",
		"name = \"purge\"\npermission = \"admin\"\nfunction execute(p, a) end\n",
	} {
		if err := h.w.scripts.LoadCommandString(code, api); err != nil {
			t.Fatalf("failed to load script: %v", err)
		}
	}
	alice := h.join(t, "alice", 0)
	root := h.join(t, "root", 1)
	root.Data.Admin = true

	if err := h.chat(t, alice, "/help"); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	text := lastBuffer(h.out.to(alice.Conn))
	for _, want := range []string{"/who", "/rules", "/wave - waves"} {
		if !strings.Contains(text, want) {
			t.Fatalf("help for a player lacks %q: %q", want, text)
		}
	}
	for _, hidden := range []string{"/kick", "/purge", "/admin "} {
		if strings.Contains(text, hidden) {
			t.Fatalf("help for a player shows %q: %q", hidden, text)
		}
	}

	if err := h.chat(t, root, "/help"); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	text = lastBuffer(h.out.to(root.Conn))
	if !strings.Contains(text, "/kick <player>") || !strings.Contains(text, "/purge") {
		t.Fatalf("help for an admin lacks admin commands: %q", text)
	}
}

func TestCommandsNeedPrivilege(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 0)
	bob := h.join(t, "bob", 1)

	if err := h.chat(t, alice, "/kick bob"); err != nil {
		t.Fatalf("kick failed: %v", err)
	}
	if !h.out.saidTo(alice.Conn, msgNoPermission) {
		t.Fatalf("expected permission denial")
	}
	if h.out.wasDisconnected(bob.Conn) {
		t.Fatalf("bob was kicked by a regular player")
	}

	if err := h.chat(t, alice, "/save"); err != nil {
		t.Fatalf("expected save to be refused, got %v", err)
	}
	alice.Data.Admin = true
	if err := h.chat(t, alice, "/save"); !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown, got %v", err)
	}
}

func TestChatNeedsRules(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 0)
	bob := h.join(t, "bob", 1)

	h.chat(t, alice, "hello")
	if !h.out.saidTo(alice.Conn, rulesPrompt) {
		t.Fatalf("expected rules prompt")
	}

	h.chat(t, alice, "/agree")
	h.out.reset()
	h.chat(t, alice, "hello")
	var got bool
	for _, msg := range h.out.to(bob.Conn) {
		if c, ok := msg.(*protocol.Chat); ok && c.Message == "alice says: hello" {
			got = true
		}
	}
	if !got {
		t.Fatalf("expected bob to receive the chat")
	}
}

func TestMachinegunHeldTrigger(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		interval := 10
		c.Weapons = map[string]config.WeaponConfig{"machinegun": {FireInterval: &interval}}
	})
	alice := h.join(t, "alice", 10)
	alice.Data.Direction = protocol.FacingRight

	h.w.Dispatch(alice.Conn, &protocol.Draw{Weapon: "machinegun"})
	if alice.Weapon != "machinegun" {
		t.Fatalf("draw failed")
	}
	h.w.Dispatch(alice.Conn, &protocol.Fire{})
	if !alice.Firing {
		t.Fatalf("automatic weapon should keep firing")
	}

	for i := 0; i < 10; i++ {
		h.tick(t, 10*time.Millisecond)
	}

	fired := len(h.w.projectiles)
	if fired < 10 || fired > 11 {
		t.Fatalf("expected about 10 projectiles, got %d", fired)
	}
	if alice.Ammo() != 50-fired {
		t.Fatalf("expected ammo %d, got %d", 50-fired, alice.Ammo())
	}

	alice.Data.Ammo["machinegun"] = 1
	h.tick(t, 10*time.Millisecond)
	if _, ok := alice.Data.Ammo["machinegun"]; ok {
		t.Fatalf("depleted ammo entry must be removed")
	}
	fired = len(h.w.projectiles)

	h.out.reset()
	for i := 0; i < 3; i++ {
		h.tick(t, 10*time.Millisecond)
	}
	if len(h.w.projectiles) != fired {
		t.Fatalf("empty weapon spawned projectiles: %d -> %d", fired, len(h.w.projectiles))
	}
	if !h.out.played("weapons/machinegun/empty.mp3") {
		t.Fatalf("expected empty cue")
	}

	h.w.Dispatch(alice.Conn, &protocol.FireStop{})
	if alice.Firing {
		t.Fatalf("FireStop should stop firing")
	}
}

func TestProjectileHitsOneTarget(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 10)
	bob := h.join(t, "bob", 12)
	carol := h.join(t, "carol", 12)
	alice.Data.Direction = protocol.FacingRight

	h.w.Dispatch(alice.Conn, &protocol.Draw{Weapon: "pistol"})
	h.w.Dispatch(alice.Conn, &protocol.Fire{})
	if len(h.w.projectiles) != 1 || alice.Ammo() != 11 {
		t.Fatalf("expected one projectile and 11 rounds, got %d and %d", len(h.w.projectiles), alice.Ammo())
	}

	h.tick(t, 25*time.Millisecond)
	h.tick(t, 25*time.Millisecond)

	if len(h.w.projectiles) != 0 {
		t.Fatalf("projectile should be gone after a hit")
	}
	if bob.Data.Health != 3000-210 || !bob.GotHit || bob.Data.LastHit != "alice" {
		t.Fatalf("bob was not hit: health %d", bob.Data.Health)
	}
	if carol.Data.Health != 3000 {
		t.Fatalf("projectile damaged a second target")
	}
	if !h.out.played("notifications/dialog.mp3") {
		t.Fatalf("expected hit ping for the shooter")
	}
}

func TestLethalHitRespawnsOnDeathMap(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 10)
	bob := h.join(t, "bob", 11)
	alice.Data.Direction = protocol.FacingRight
	bob.Data.Health = 100

	h.w.Dispatch(alice.Conn, &protocol.Draw{Weapon: "pistol"})
	h.w.Dispatch(alice.Conn, &protocol.Fire{})
	h.tick(t, 25*time.Millisecond)

	if bob.Data.Map != "safe_zone" || bob.Data.Y != 0 || bob.Data.X < 0 || bob.Data.X > 50 {
		t.Fatalf("bob not relocated: %s %d,%d", bob.Data.Map, bob.Data.X, bob.Data.Y)
	}
	if bob.Data.Health != 3000 || bob.GotHit {
		t.Fatalf("bob not reset: health %d hit %v", bob.Data.Health, bob.GotHit)
	}
	if bob.Data.Deaths != 1 || alice.Data.Kills != 1 {
		t.Fatalf("counters not updated: %d deaths, %d kills", bob.Data.Deaths, alice.Data.Kills)
	}
}

func TestProjectileStopsAtWall(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 45)
	alice.Data.Direction = protocol.FacingRight

	h.w.Dispatch(alice.Conn, &protocol.Draw{Weapon: "pistol"})
	h.w.Dispatch(alice.Conn, &protocol.Fire{})

	for i := 0; i < 4; i++ {
		h.tick(t, 25*time.Millisecond)
	}
	if len(h.w.projectiles) != 1 {
		t.Fatalf("projectile vanished before reaching the wall")
	}
	h.tick(t, 25*time.Millisecond)
	if len(h.w.projectiles) != 0 {
		t.Fatalf("projectile should be removed at the wall")
	}
	if !h.out.played("walls/brick_wall.mp3") {
		t.Fatalf("expected wall impact cue")
	}
}

func TestReloadRefillsToCapacity(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 0)

	h.w.Dispatch(alice.Conn, &protocol.Draw{Weapon: "pistol"})
	h.w.Dispatch(alice.Conn, &protocol.Reload{})
	if alice.Reloading {
		t.Fatalf("reload with a loaded weapon should be refused")
	}

	delete(alice.Data.Ammo, "pistol")
	h.w.Dispatch(alice.Conn, &protocol.Reload{})
	if !alice.Reloading || alice.Cartridges() != 49 {
		t.Fatalf("reload did not start: reloading %v cartridges %d", alice.Reloading, alice.Cartridges())
	}

	h.w.Dispatch(alice.Conn, &protocol.Fire{})
	if len(h.w.projectiles) != 0 {
		t.Fatalf("fired while reloading")
	}

	h.tick(t, 3499*time.Millisecond)
	if !alice.Reloading {
		t.Fatalf("reload finished early")
	}
	h.tick(t, time.Millisecond)
	if alice.Reloading || alice.Ammo() != 12 {
		t.Fatalf("expected a full magazine, got %d", alice.Ammo())
	}
}

func TestReloadWithoutCartridges(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 0)

	h.w.Dispatch(alice.Conn, &protocol.Draw{Weapon: "grenade_launcher"})
	delete(alice.Data.Ammo, "grenade_launcher")
	delete(alice.Data.Cartridges, "grenade_launcher")

	h.w.Dispatch(alice.Conn, &protocol.Reload{})
	if alice.Reloading || !h.out.saidTo(alice.Conn, "You don't have any cartridges left!") {
		t.Fatalf("expected refusal")
	}
}

func TestJumpOffLedgeFalls(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 25)
	alice.Data.Y = 10

	h.w.Dispatch(alice.Conn, &protocol.Jump{})
	if alice.Motion != player.Jumping {
		t.Fatalf("jump refused from the ledge")
	}

	h.tick(t, 70*time.Millisecond)
	h.w.Dispatch(alice.Conn, &protocol.Move{X: protocol.Int32(26), Y: protocol.Int32(11)})
	if alice.Data.X != 26 {
		t.Fatalf("air step refused")
	}

	for i := 0; i < 9; i++ {
		h.tick(t, 70*time.Millisecond)
	}
	if alice.Motion != player.Falling {
		t.Fatalf("expected Falling, got %v at y %d", alice.Motion, alice.Data.Y)
	}

	for i := 0; i < 10; i++ {
		h.tick(t, 70*time.Millisecond)
	}
	if alice.Motion != player.OnGround || alice.Data.Y != 0 {
		t.Fatalf("expected to land on the ground, got %v at y %d", alice.Motion, alice.Data.Y)
	}
}

func TestMoveIntoWallIsRefused(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 49)
	h.out.reset()

	h.w.Dispatch(alice.Conn, &protocol.Move{X: protocol.Int32(50), Y: protocol.Int32(0)})
	if alice.Data.X != 49 {
		t.Fatalf("walked into a wall")
	}
	if !h.out.played("walls/brick_wall.mp3") {
		t.Fatalf("expected wall cue")
	}

	h.w.Dispatch(alice.Conn, &protocol.Move{X: protocol.Int32(40), Y: protocol.Int32(0)})
	if alice.Data.X != 49 {
		t.Fatalf("accepted a jump of several tiles")
	}
	msgs := h.out.to(alice.Conn)
	if _, ok := msgs[len(msgs)-1].(*protocol.MoveClient); !ok {
		t.Fatalf("expected a resync, got %T", msgs[len(msgs)-1])
	}

	h.w.Dispatch(alice.Conn, &protocol.Move{X: protocol.Int32(48), Y: protocol.Int32(0)})
	if alice.Data.X != 48 {
		t.Fatalf("single step refused")
	}
}

func TestCloseWhileHitBansTemporarily(t *testing.T) {
	h := newHarness(t, nil)
	bob := h.join(t, "bob", 0)
	bob.GotHit = true
	bob.HitAt = h.clock.Now()

	if err := h.w.Dispatch(bob.Conn, &protocol.Close{}); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if h.w.Online() != 0 {
		t.Fatalf("bob is still online")
	}
	if !h.w.bans.IsTemporarilyBanned("bob", "bob-device") {
		t.Fatalf("expected a combat logging ban")
	}
}

func TestSessionStatePersists(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 7)
	alice.Data.Kills = 4
	alice.Data.Give("health_potion", 2)

	if err := h.w.Disconnect(alice.Conn); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	conn := h.connect()
	again, err := h.w.Authenticate(conn, login("alice"))
	if err != nil {
		t.Fatalf("relogin failed: %v", err)
	}
	if again.Data.X != 7 || again.Data.Kills != 4 || again.Data.Inventory.Count("health_potion") != 2 {
		t.Fatalf("state not restored: %+v", again.Data)
	}
}

func TestUseHealthPotion(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.join(t, "alice", 0)
	alice.Data.Give("health_potion", 2)

	h.w.Dispatch(alice.Conn, &protocol.UseItem{})
	if !h.out.saidTo(alice.Conn, "You are already at full health") {
		t.Fatalf("expected full health refusal")
	}

	alice.Data.Health = 2000
	h.w.Dispatch(alice.Conn, &protocol.UseItem{})
	if alice.Data.Health != 2500 || alice.Data.Inventory.Count("health_potion") != 1 {
		t.Fatalf("potion not applied: health %d", alice.Data.Health)
	}

	h.clock.advance(10 * time.Second)
	h.w.Dispatch(alice.Conn, &protocol.UseItem{})
	if !h.out.saidTo(alice.Conn, "You can't use this, You need to wait 20 seconds") {
		t.Fatalf("expected cooldown message")
	}
}

func TestTeleporterIsServerDriven(t *testing.T) {
	h := newHarness(t, nil)
	h.w.grids["main"].AddTeleporter(maps.Teleporter{
		Region: maps.Region{MinX: 3, MaxX: 3, MinY: 0, MaxY: 0},
		EndX:   maps.Span{Min: 5, Max: 5},
		EndY:   maps.Span{Min: 0, Max: 0},
		Map:    "safe_zone",
	})
	alice := h.join(t, "alice", 2)

	h.w.Dispatch(alice.Conn, &protocol.Teleport{X: 40, Y: 0, Map: "safe_zone"})
	if alice.Data.Map != "main" {
		t.Fatalf("teleported outside of a teleporter")
	}

	alice.Data.X = 3
	h.w.Dispatch(alice.Conn, &protocol.Teleport{X: 40, Y: 0, Map: "main"})
	if alice.Data.Map != "safe_zone" || alice.Data.X != 5 {
		t.Fatalf("expected safe_zone 5,0, got %s %d,%d", alice.Data.Map, alice.Data.X, alice.Data.Y)
	}
}

func TestNewMapAndRemMap(t *testing.T) {
	h := newHarness(t, nil)
	admin := h.join(t, "admin", 0)
	admin.Data.Admin = true

	if err := h.chat(t, admin, "/newmap arena 30 10 stone"); err != nil {
		t.Fatalf("newmap failed: %v", err)
	}
	if _, ok := h.w.grids["arena"]; !ok || admin.Data.Map != "arena" {
		t.Fatalf("expected admin on the new map")
	}

	if err := h.chat(t, admin, "/remmap main"); err != nil {
		t.Fatalf("remmap failed: %v", err)
	}
	if !h.out.saidTo(admin.Conn, "Error: This map cannot be deleted") {
		t.Fatalf("spawn map must be protected")
	}

	if err := h.chat(t, admin, "/remmap"); err != nil {
		t.Fatalf("remmap failed: %v", err)
	}
	if _, ok := h.w.grids["arena"]; ok || admin.Data.Map != "main" {
		t.Fatalf("expected arena gone and admin back on main")
	}
}
