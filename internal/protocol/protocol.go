package protocol

// Kind identifies a message variant. It doubles as the field number of the
// variant inside the outer packet, so values must never be reused.
type Kind int32

const (
	KindLogin       Kind = 1
	KindCreate      Kind = 2
	KindConnected   Kind = 3
	KindError       Kind = 4
	KindClose       Kind = 5
	KindMove        Kind = 6
	KindMoveClient  Kind = 7
	KindTeleport    Kind = 8
	KindFire        Kind = 9
	KindFireStop    Kind = 10
	KindReload      Kind = 11
	KindDraw        Kind = 12
	KindWeaponData  Kind = 13
	KindAmmo        Kind = 14
	KindHealth      Kind = 15
	KindPlay        Kind = 16
	KindParseMap    Kind = 17
	KindOnline      Kind = 18
	KindOffline     Kind = 19
	KindChat        Kind = 20
	KindSay         Kind = 21
	KindBuffer      Kind = 22
	KindWho         Kind = 23
	KindPing        Kind = 24
	KindPong        Kind = 25
	KindServerStats Kind = 26
	KindServerNote  Kind = 27
	KindCycle       Kind = 28
	KindUseItem     Kind = 29
	KindCreated     Kind = 30
	KindConnect     Kind = 31
	KindJump        Kind = 32
)

// Facing directions shared by players and projectiles.
const (
	FacingRight = 0
	FacingLeft  = 1
	FacingUp    = 2
	FacingDown  = 3
)

func ValidFacing(d int) bool {
	return d >= FacingRight && d <= FacingDown
}

// Buffer channel names used by the client to file messages.
const (
	BufferNotifications = "notifications"
	BufferAdminAlerts   = "admin alerts"
	BufferKills         = "kills"
	BufferChat          = "chat"
)

type Message interface {
	Kind() Kind
	appendFields(b []byte) []byte
	setField(f field) error
}

type PlayerInfo struct {
	Name      string
	X         int32
	Y         int32
	Direction int32
	Map       string
}

type Login struct {
	User     string
	Password string
	ID       string
	Version  string
	Dev      *bool
}

type Create struct {
	User     string
	Password string
	Email    string
	ID       string
}

type Connected struct {
	Players []PlayerInfo
	Admin   *bool
	Dev     *bool
}

type Error struct {
	Reason string
}

type Close struct{}

// Move is both the client's movement request and the server's position
// broadcast. Absent coordinates leave the current value untouched.
type Move struct {
	X         *int32
	Y         *int32
	Direction *int32
	Who       string
	Map       string
	Silent    *bool
}

type MoveClient struct {
	X         *int32
	Y         *int32
	Direction *int32
	Map       string
}

type Teleport struct {
	X   int32
	Y   int32
	Map string
}

type Fire struct{}

type FireStop struct{}

type Reload struct{}

type Draw struct {
	Weapon string
}

type WeaponData struct {
	FireTime   int32
	ReloadTime int32
	Automatic  bool
}

type Ammo struct{}

type Health struct{}

type Play struct {
	Sound    string
	X        *int32
	Y        *int32
	Who      string
	Map      string
	SelfPlay *bool
}

type ParseMap struct {
	Data string
}

type Online struct {
	Who       string
	X         int32
	Y         int32
	Direction int32
	Map       string
}

type Offline struct {
	Who string
}

type Chat struct {
	Message string
}

type Say struct {
	Text string
}

type Buffer struct {
	Text  string
	Name  string
	Sound string
}

type Who struct{}

type Ping struct{}

type Pong struct{}

type ServerStats struct{}

type ServerNote struct{}

type Cycle struct {
	Direction int32
}

type UseItem struct{}

type Created struct{}

type Connect struct{}

type Jump struct{}

func (*Login) Kind() Kind       { return KindLogin }
func (*Create) Kind() Kind      { return KindCreate }
func (*Connected) Kind() Kind   { return KindConnected }
func (*Error) Kind() Kind       { return KindError }
func (*Close) Kind() Kind       { return KindClose }
func (*Move) Kind() Kind        { return KindMove }
func (*MoveClient) Kind() Kind  { return KindMoveClient }
func (*Teleport) Kind() Kind    { return KindTeleport }
func (*Fire) Kind() Kind        { return KindFire }
func (*FireStop) Kind() Kind    { return KindFireStop }
func (*Reload) Kind() Kind      { return KindReload }
func (*Draw) Kind() Kind        { return KindDraw }
func (*WeaponData) Kind() Kind  { return KindWeaponData }
func (*Ammo) Kind() Kind        { return KindAmmo }
func (*Health) Kind() Kind      { return KindHealth }
func (*Play) Kind() Kind        { return KindPlay }
func (*ParseMap) Kind() Kind    { return KindParseMap }
func (*Online) Kind() Kind      { return KindOnline }
func (*Offline) Kind() Kind     { return KindOffline }
func (*Chat) Kind() Kind        { return KindChat }
func (*Say) Kind() Kind         { return KindSay }
func (*Buffer) Kind() Kind      { return KindBuffer }
func (*Who) Kind() Kind         { return KindWho }
func (*Ping) Kind() Kind        { return KindPing }
func (*Pong) Kind() Kind        { return KindPong }
func (*ServerStats) Kind() Kind { return KindServerStats }
func (*ServerNote) Kind() Kind  { return KindServerNote }
func (*Cycle) Kind() Kind       { return KindCycle }
func (*UseItem) Kind() Kind     { return KindUseItem }
func (*Created) Kind() Kind     { return KindCreated }
func (*Connect) Kind() Kind     { return KindConnect }
func (*Jump) Kind() Kind        { return KindJump }

func newMessage(kind Kind) Message {
	switch kind {
	case KindLogin:
		return &Login{}
	case KindCreate:
		return &Create{}
	case KindConnected:
		return &Connected{}
	case KindError:
		return &Error{}
	case KindClose:
		return &Close{}
	case KindMove:
		return &Move{}
	case KindMoveClient:
		return &MoveClient{}
	case KindTeleport:
		return &Teleport{}
	case KindFire:
		return &Fire{}
	case KindFireStop:
		return &FireStop{}
	case KindReload:
		return &Reload{}
	case KindDraw:
		return &Draw{}
	case KindWeaponData:
		return &WeaponData{}
	case KindAmmo:
		return &Ammo{}
	case KindHealth:
		return &Health{}
	case KindPlay:
		return &Play{}
	case KindParseMap:
		return &ParseMap{}
	case KindOnline:
		return &Online{}
	case KindOffline:
		return &Offline{}
	case KindChat:
		return &Chat{}
	case KindSay:
		return &Say{}
	case KindBuffer:
		return &Buffer{}
	case KindWho:
		return &Who{}
	case KindPing:
		return &Ping{}
	case KindPong:
		return &Pong{}
	case KindServerStats:
		return &ServerStats{}
	case KindServerNote:
		return &ServerNote{}
	case KindCycle:
		return &Cycle{}
	case KindUseItem:
		return &UseItem{}
	case KindCreated:
		return &Created{}
	case KindConnect:
		return &Connect{}
	case KindJump:
		return &Jump{}
	}
	return nil
}

func Int32(v int) *int32 {
	n := int32(v)
	return &n
}

func Bool(v bool) *bool {
	return &v
}
