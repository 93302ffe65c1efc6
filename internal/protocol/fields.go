package protocol

import "fmt"

func (m *PlayerInfo) appendFields(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	b = appendInt32(b, 2, m.X)
	b = appendInt32(b, 3, m.Y)
	b = appendInt32(b, 4, m.Direction)
	return appendString(b, 5, m.Map)
}

func (m *PlayerInfo) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.Name, err = f.str()
	case 2:
		m.X, err = f.int32()
	case 3:
		m.Y, err = f.int32()
	case 4:
		m.Direction, err = f.int32()
	case 5:
		m.Map, err = f.str()
	}
	return err
}

func (m *Login) appendFields(b []byte) []byte {
	b = appendString(b, 1, m.User)
	b = appendString(b, 2, m.Password)
	b = appendString(b, 3, m.ID)
	b = appendString(b, 4, m.Version)
	return appendOptBool(b, 5, m.Dev)
}

func (m *Login) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.User, err = f.str()
	case 2:
		m.Password, err = f.str()
	case 3:
		m.ID, err = f.str()
	case 4:
		m.Version, err = f.str()
	case 5:
		m.Dev, err = f.optBool()
	}
	return err
}

func (m *Create) appendFields(b []byte) []byte {
	b = appendString(b, 1, m.User)
	b = appendString(b, 2, m.Password)
	b = appendString(b, 3, m.Email)
	return appendString(b, 4, m.ID)
}

func (m *Create) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.User, err = f.str()
	case 2:
		m.Password, err = f.str()
	case 3:
		m.Email, err = f.str()
	case 4:
		m.ID, err = f.str()
	}
	return err
}

func (m *Connected) appendFields(b []byte) []byte {
	for i := range m.Players {
		b = appendMessage(b, 1, m.Players[i].appendFields(nil))
	}
	b = appendOptBool(b, 2, m.Admin)
	return appendOptBool(b, 3, m.Dev)
}

func (m *Connected) setField(f field) (err error) {
	switch f.num {
	case 1:
		data, err := f.message()
		if err != nil {
			return err
		}
		var info PlayerInfo
		if err := eachField(data, info.setField); err != nil {
			return fmt.Errorf("player info: %w", err)
		}
		m.Players = append(m.Players, info)
	case 2:
		m.Admin, err = f.optBool()
	case 3:
		m.Dev, err = f.optBool()
	}
	return err
}

func (m *Error) appendFields(b []byte) []byte {
	return appendString(b, 1, m.Reason)
}

func (m *Error) setField(f field) (err error) {
	if f.num == 1 {
		m.Reason, err = f.str()
	}
	return err
}

func (m *Move) appendFields(b []byte) []byte {
	b = appendOptInt32(b, 1, m.X)
	b = appendOptInt32(b, 2, m.Y)
	b = appendOptInt32(b, 3, m.Direction)
	b = appendString(b, 4, m.Who)
	b = appendString(b, 5, m.Map)
	return appendOptBool(b, 6, m.Silent)
}

func (m *Move) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.X, err = f.optInt32()
	case 2:
		m.Y, err = f.optInt32()
	case 3:
		m.Direction, err = f.optInt32()
	case 4:
		m.Who, err = f.str()
	case 5:
		m.Map, err = f.str()
	case 6:
		m.Silent, err = f.optBool()
	}
	return err
}

func (m *MoveClient) appendFields(b []byte) []byte {
	b = appendOptInt32(b, 1, m.X)
	b = appendOptInt32(b, 2, m.Y)
	b = appendOptInt32(b, 3, m.Direction)
	return appendString(b, 4, m.Map)
}

func (m *MoveClient) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.X, err = f.optInt32()
	case 2:
		m.Y, err = f.optInt32()
	case 3:
		m.Direction, err = f.optInt32()
	case 4:
		m.Map, err = f.str()
	}
	return err
}

func (m *Teleport) appendFields(b []byte) []byte {
	b = appendInt32(b, 1, m.X)
	b = appendInt32(b, 2, m.Y)
	return appendString(b, 3, m.Map)
}

func (m *Teleport) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.X, err = f.int32()
	case 2:
		m.Y, err = f.int32()
	case 3:
		m.Map, err = f.str()
	}
	return err
}

func (m *Draw) appendFields(b []byte) []byte {
	return appendString(b, 1, m.Weapon)
}

func (m *Draw) setField(f field) (err error) {
	if f.num == 1 {
		m.Weapon, err = f.str()
	}
	return err
}

func (m *WeaponData) appendFields(b []byte) []byte {
	b = appendInt32(b, 1, m.FireTime)
	b = appendInt32(b, 2, m.ReloadTime)
	return appendBool(b, 3, m.Automatic)
}

func (m *WeaponData) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.FireTime, err = f.int32()
	case 2:
		m.ReloadTime, err = f.int32()
	case 3:
		m.Automatic, err = f.boolean()
	}
	return err
}

func (m *Play) appendFields(b []byte) []byte {
	b = appendString(b, 1, m.Sound)
	b = appendOptInt32(b, 2, m.X)
	b = appendOptInt32(b, 3, m.Y)
	b = appendString(b, 4, m.Who)
	b = appendString(b, 5, m.Map)
	return appendOptBool(b, 6, m.SelfPlay)
}

func (m *Play) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.Sound, err = f.str()
	case 2:
		m.X, err = f.optInt32()
	case 3:
		m.Y, err = f.optInt32()
	case 4:
		m.Who, err = f.str()
	case 5:
		m.Map, err = f.str()
	case 6:
		m.SelfPlay, err = f.optBool()
	}
	return err
}

func (m *ParseMap) appendFields(b []byte) []byte {
	return appendString(b, 1, m.Data)
}

func (m *ParseMap) setField(f field) (err error) {
	if f.num == 1 {
		m.Data, err = f.str()
	}
	return err
}

func (m *Online) appendFields(b []byte) []byte {
	b = appendString(b, 1, m.Who)
	b = appendInt32(b, 2, m.X)
	b = appendInt32(b, 3, m.Y)
	b = appendInt32(b, 4, m.Direction)
	return appendString(b, 5, m.Map)
}

func (m *Online) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.Who, err = f.str()
	case 2:
		m.X, err = f.int32()
	case 3:
		m.Y, err = f.int32()
	case 4:
		m.Direction, err = f.int32()
	case 5:
		m.Map, err = f.str()
	}
	return err
}

func (m *Offline) appendFields(b []byte) []byte {
	return appendString(b, 1, m.Who)
}

func (m *Offline) setField(f field) (err error) {
	if f.num == 1 {
		m.Who, err = f.str()
	}
	return err
}

func (m *Chat) appendFields(b []byte) []byte {
	return appendString(b, 1, m.Message)
}

func (m *Chat) setField(f field) (err error) {
	if f.num == 1 {
		m.Message, err = f.str()
	}
	return err
}

func (m *Say) appendFields(b []byte) []byte {
	return appendString(b, 1, m.Text)
}

func (m *Say) setField(f field) (err error) {
	if f.num == 1 {
		m.Text, err = f.str()
	}
	return err
}

func (m *Buffer) appendFields(b []byte) []byte {
	b = appendString(b, 1, m.Text)
	b = appendString(b, 2, m.Name)
	return appendString(b, 3, m.Sound)
}

func (m *Buffer) setField(f field) (err error) {
	switch f.num {
	case 1:
		m.Text, err = f.str()
	case 2:
		m.Name, err = f.str()
	case 3:
		m.Sound, err = f.str()
	}
	return err
}

func (m *Cycle) appendFields(b []byte) []byte {
	return appendInt32(b, 1, m.Direction)
}

func (m *Cycle) setField(f field) (err error) {
	if f.num == 1 {
		m.Direction, err = f.int32()
	}
	return err
}

// field-less variants

func (*Close) appendFields(b []byte) []byte       { return b }
func (*Fire) appendFields(b []byte) []byte        { return b }
func (*FireStop) appendFields(b []byte) []byte    { return b }
func (*Reload) appendFields(b []byte) []byte      { return b }
func (*Ammo) appendFields(b []byte) []byte        { return b }
func (*Health) appendFields(b []byte) []byte      { return b }
func (*Who) appendFields(b []byte) []byte         { return b }
func (*Ping) appendFields(b []byte) []byte        { return b }
func (*Pong) appendFields(b []byte) []byte        { return b }
func (*ServerStats) appendFields(b []byte) []byte { return b }
func (*ServerNote) appendFields(b []byte) []byte  { return b }
func (*UseItem) appendFields(b []byte) []byte     { return b }
func (*Created) appendFields(b []byte) []byte     { return b }
func (*Connect) appendFields(b []byte) []byte     { return b }
func (*Jump) appendFields(b []byte) []byte        { return b }

func (*Close) setField(field) error       { return nil }
func (*Fire) setField(field) error        { return nil }
func (*FireStop) setField(field) error    { return nil }
func (*Reload) setField(field) error      { return nil }
func (*Ammo) setField(field) error        { return nil }
func (*Health) setField(field) error      { return nil }
func (*Who) setField(field) error         { return nil }
func (*Ping) setField(field) error        { return nil }
func (*Pong) setField(field) error        { return nil }
func (*ServerStats) setField(field) error { return nil }
func (*ServerNote) setField(field) error  { return nil }
func (*UseItem) setField(field) error     { return nil }
func (*Created) setField(field) error     { return nil }
func (*Connect) setField(field) error     { return nil }
func (*Jump) setField(field) error        { return nil }
