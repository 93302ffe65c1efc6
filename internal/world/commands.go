package world

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/siohaza/coas/internal/maps"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/storage"
	"github.com/siohaza/coas/internal/timefmt"
	"github.com/siohaza/coas/pkg/lua"
)

//go:embed rules.txt
var rules string

type access int

const (
	anyone access = iota
	adminOnly
	devOnly
)

type command struct {
	access  access
	minArgs int
	usage   string
	run     func(w *World, s *player.Session, args []string, rest string) error
}

const (
	msgNoPermission   = "You don't have permission to use this command"
	msgPlayerNotFound = "Error, Player not found!"

	// longest timed ban whose duration still fits a time.Duration
	maxBanMinutes = math.MaxInt64 / uint64(time.Minute)
)

var commands = map[string]command{
	"rawmap":    {adminOnly, 0, "/rawmap", (*World).cmdRawMap},
	"rawdata":   {adminOnly, 1, "/rawdata <map text>", (*World).cmdRawData},
	"admin":     {devOnly, 1, "/admin <player>", (*World).cmdAdmin},
	"at":        {adminOnly, 1, "/at <text>", (*World).cmdAdminChat},
	"admintell": {adminOnly, 1, "/admintell <text>", (*World).cmdAdminTell},
	"notify":    {adminOnly, 1, "/notify <text>", (*World).cmdNotify},
	"me":        {anyone, 1, "/me <text>", (*World).cmdMe},
	"can_chat":  {adminOnly, 1, "/can_chat <player>", (*World).cmdCanChat},
	"rules":     {anyone, 0, "/rules", (*World).cmdRules},
	"agree":     {anyone, 0, "/agree", (*World).cmdAgree},
	"save":      {adminOnly, 0, "/save", (*World).cmdSave},
	"hit_ping":  {adminOnly, 0, "/hit_ping", (*World).cmdHitPing},
	"kick":      {adminOnly, 1, "/kick <player>", (*World).cmdKick},
	"ban":       {adminOnly, 1, "/ban <player>", (*World).cmdBan},
	"timed_ban": {adminOnly, 2, "/timed_ban <player> <minutes>", (*World).cmdTimedBan},
	"move":      {adminOnly, 3, "/move <player> <x> <y> [map]", (*World).cmdMove},
	"newmap":    {adminOnly, 4, "/newmap <name> <maxx> <maxy> <tile>", (*World).cmdNewMap},
	"remmap":    {adminOnly, 0, "/remmap [name]", (*World).cmdRemMap},
	"give":      {adminOnly, 3, "/give <player> <item> <amount>", (*World).cmdGive},
	"giveall":   {adminOnly, 2, "/giveall <item> <amount>", (*World).cmdGiveAll},
	"note":      {adminOnly, 1, "/note <text>", (*World).cmdNote},
	"who":       {anyone, 0, "/who", (*World).cmdWho},
	"where":     {anyone, 0, "/where", (*World).cmdWhere},
}

func allowed(s *player.Session, a access) bool {
	switch a {
	case adminOnly:
		return s.IsAdmin()
	case devOnly:
		return s.Data.Dev
	}
	return true
}

// runCommand executes a chat command line without its leading slash.
// Built-in commands take precedence over scripted ones.
func (w *World) runCommand(s *player.Session, line string) error {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	if name == "" {
		return nil
	}
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	if name == "help" {
		w.help(s)
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		w.runScript(s, name, args)
		return nil
	}
	if !allowed(s, cmd.access) {
		w.say(s, msgNoPermission)
		return nil
	}
	if len(args) < cmd.minArgs {
		w.say(s, "Usage: "+cmd.usage)
		return nil
	}

	w.logger.Debug("command", "player", s.Name, "command", name, "args", args)
	return cmd.run(w, s, args, rest)
}

// help lists every built-in and scripted command the caller may use.
func (w *World) help(s *player.Session) {
	usages := []string{"/help"}
	for _, cmd := range commands {
		if allowed(s, cmd.access) {
			usages = append(usages, cmd.usage)
		}
	}
	sort.Strings(usages)

	for _, cmd := range w.scripts.List(w.caller(s)) {
		usage := cmd.Usage
		if usage == "" {
			usage = "/" + cmd.Name
		}
		if cmd.Description != "" {
			usage += " - " + cmd.Description
		}
		usages = append(usages, usage)
	}

	w.Send(s, &protocol.Buffer{Text: "Available commands: " + strings.Join(usages, ", ")})
}

func (w *World) runScript(s *player.Session, name string, args []string) {
	if w.scripts.Get(name) == nil {
		w.say(s, "Unknown command")
		return
	}

	result, err := w.scripts.Execute(w.caller(s), name, args)
	switch {
	case errors.Is(err, lua.ErrPermission):
		w.say(s, msgNoPermission)
	case err != nil:
		w.logger.Warn("script command failed", "command", name, "player", s.Name, "error", err)
		w.say(s, "Error: The command failed")
	case result != "":
		w.say(s, result)
	}
}

func (w *World) cmdRawMap(s *player.Session, _ []string, _ string) error {
	if grid, ok := w.grids[s.Data.Map]; ok {
		w.Send(s, &protocol.Buffer{Text: grid.Source})
	}
	return nil
}

// cmdRawData replaces the caller's current map with new text.
func (w *World) cmdRawData(s *player.Session, _ []string, rest string) error {
	name := s.Data.Map
	grid, err := maps.Parse(name, rest)
	if err != nil {
		w.say(s, fmt.Sprintf("Error: Unable to update the map, Reason: %v", err))
		return nil
	}
	grid.Name = name
	if err := w.mapStore.Write(name, rest); err != nil {
		w.say(s, fmt.Sprintf("Error: Unable to update the map, Reason: %v", err))
		return nil
	}
	w.grids[name] = grid

	w.broadcastMap(name, &protocol.ParseMap{Data: grid.Source})
	w.broadcastMap(name, &protocol.Buffer{Text: "Map updated!"})
	w.logger.Info("map replaced", "map", name, "by", s.Name)
	return nil
}

func (w *World) cmdAdmin(s *player.Session, args []string, _ string) error {
	target, ok := w.players.GetByName(args[0])
	if !ok {
		w.say(s, msgPlayerNotFound)
		return nil
	}
	target.Data.Admin = !target.Data.Admin
	if target.Data.Admin {
		w.Send(target, &protocol.Buffer{Text: "You are now an admin"})
		w.Notify(fmt.Sprintf("%s Has been promoted to administrator", target.Name))
	} else {
		w.Send(target, &protocol.Buffer{Text: "You are no longer an admin"})
		w.Notify(fmt.Sprintf("%s Has been removed from the administrator status", target.Name))
	}
	return nil
}

func (w *World) cmdAdminChat(s *player.Session, _ []string, rest string) error {
	w.AdminTell(fmt.Sprintf("Admin chat from %s: %s", s.Name, rest))
	return nil
}

func (w *World) cmdAdminTell(s *player.Session, _ []string, rest string) error {
	w.AdminTell(fmt.Sprintf("Admin tell from %s: %s", s.Name, rest))
	return nil
}

func (w *World) cmdNotify(s *player.Session, _ []string, rest string) error {
	w.Notify(rest)
	w.AdminTell(fmt.Sprintf("%s Has just sent a notification to the server!", s.Name))
	return nil
}

func (w *World) cmdMe(s *player.Session, _ []string, rest string) error {
	w.Broadcast(&protocol.Buffer{
		Text:  s.Name + " " + rest,
		Name:  protocol.BufferChat,
		Sound: soundChat,
	})
	return nil
}

func (w *World) cmdCanChat(s *player.Session, args []string, _ string) error {
	target, ok := w.players.GetByName(args[0])
	if !ok {
		w.say(s, msgPlayerNotFound)
		return nil
	}
	target.Data.CanChat = !target.Data.CanChat
	if target.Data.CanChat {
		w.Notify(fmt.Sprintf("%s's chats were enabled by %s", target.Name, s.Name))
	} else {
		w.Notify(fmt.Sprintf("%s's chats were disabled by %s", target.Name, s.Name))
	}
	return nil
}

func (w *World) cmdRules(s *player.Session, _ []string, _ string) error {
	w.Send(s, &protocol.Buffer{Text: rules})
	return nil
}

func (w *World) cmdAgree(s *player.Session, _ []string, _ string) error {
	if s.Data.AgreedToRules {
		w.say(s, "You have already agreed to the rules!")
		return nil
	}
	s.Data.AgreedToRules = true
	w.say(s, "Success, You have agreed to the rules, Welcome to the game.")
	return nil
}

func (w *World) cmdSave(s *player.Session, _ []string, _ string) error {
	w.logger.Info("shutdown requested", "by", s.Name)
	return ErrShutdown
}

func (w *World) cmdHitPing(s *player.Session, _ []string, _ string) error {
	s.Data.HitPing = !s.Data.HitPing
	if s.Data.HitPing {
		w.say(s, "Hitting ping turned on!")
	} else {
		w.say(s, "Hitting ping turned off!")
	}
	return nil
}

func (w *World) cmdKick(s *player.Session, args []string, _ string) error {
	target, ok := w.players.GetByName(args[0])
	if !ok {
		w.say(s, msgPlayerNotFound)
		return nil
	}
	w.Notify(fmt.Sprintf("%s have been kicked by %s", target.Name, s.Name))
	w.logger.Info("player kicked", "name", target.Name, "by", s.Name)
	return w.drop(target)
}

func (w *World) cmdBan(s *player.Session, args []string, _ string) error {
	if target, ok := w.players.GetByName(args[0]); ok {
		w.bans.AddBan(target.Name, target.Data.ID, s.Name, w.now())
		if err := w.saveServer(); err != nil {
			return err
		}
		w.Notify(fmt.Sprintf("%s Have been banned by %s", target.Name, s.Name))
		w.logger.Info("player banned", "name", target.Name, "by", s.Name)
		return w.drop(target)
	}

	name, id, ok, err := w.offlineAccount(args[0])
	if err != nil {
		return err
	}
	if !ok {
		w.say(s, msgPlayerNotFound)
		return nil
	}
	if w.bans.IsBanned(name, "") {
		w.bans.RemoveBan(name)
		w.Notify(fmt.Sprintf("%s Have been unbanned by %s", name, s.Name))
	} else {
		w.bans.AddBan(name, id, s.Name, w.now())
		w.Notify(fmt.Sprintf("%s Have been banned by %s", name, s.Name))
	}
	return w.saveServer()
}

func (w *World) cmdTimedBan(s *player.Session, args []string, _ string) error {
	minutes, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		w.say(s, fmt.Sprintf("Error in second argument(Time), Reason: %v", err))
		return nil
	}
	if minutes > maxBanMinutes {
		w.say(s, fmt.Sprintf("Error in second argument(Time), Reason: at most %d minutes", maxBanMinutes))
		return nil
	}
	duration := time.Duration(minutes) * time.Minute
	banned := func(name string) string {
		return fmt.Sprintf("%s Have been temporarily banned by %s For %s", name, s.Name, timefmt.Format(duration))
	}

	if target, ok := w.players.GetByName(args[0]); ok {
		w.bans.AddTemporary(target.Name, target.Data.ID, s.Name, duration, w.now())
		if err := w.saveServer(); err != nil {
			return err
		}
		w.Notify(banned(target.Name))
		return w.drop(target)
	}

	name, id, ok, err := w.offlineAccount(args[0])
	if err != nil {
		return err
	}
	if !ok {
		w.say(s, msgPlayerNotFound)
		return nil
	}
	if w.bans.IsTemporarilyBanned(name, "") {
		w.bans.RemoveTemporary(name)
		w.Notify(fmt.Sprintf("%s Have been unbanned by %s", name, s.Name))
	} else {
		w.bans.AddTemporary(name, id, s.Name, duration, w.now())
		w.Notify(banned(name))
	}
	return w.saveServer()
}

// offlineAccount looks up a stored account that is not logged in.
func (w *World) offlineAccount(name string) (display, id string, ok bool, err error) {
	display, raw, err := w.store.LoadState(name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, &PersistenceError{Op: "load " + name, Err: err}
	}
	data, err := player.DecodeData(raw, w.defaults)
	if err != nil {
		return "", "", false, &PersistenceError{Op: "decode " + name, Err: err}
	}
	return display, data.ID, true, nil
}

func (w *World) cmdMove(s *player.Session, args []string, _ string) error {
	target, ok := w.players.GetByName(args[0])
	if !ok {
		w.say(s, msgPlayerNotFound)
		return nil
	}
	mapName := target.Data.Map
	if len(args) > 3 {
		mapName = args[3]
	}
	grid, ok := w.grids[mapName]
	if !ok {
		w.say(s, "That map does not exist!")
		return nil
	}

	fail := func(err error) error {
		w.say(s, fmt.Sprintf("Error: Couldn't change the player's location, Reason: %v", err))
		return nil
	}
	x, err := strconv.Atoi(args[1])
	if err != nil {
		return fail(err)
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		return fail(err)
	}
	if !grid.InBounds(x, y) {
		return fail(fmt.Errorf("%d, %d is outside of %s", x, y, mapName))
	}
	if tile, ok := grid.WallAt(x, y); ok {
		return fail(fmt.Errorf("%d, %d is a %s", x, y, tile))
	}

	w.changeMap(target, x, y, mapName)
	return nil
}

func (w *World) cmdNewMap(s *player.Session, args []string, _ string) error {
	name, tile := args[0], args[3]
	if _, ok := w.grids[name]; ok {
		w.say(s, "That map already exists!")
		return nil
	}

	fail := func(err error) error {
		w.say(s, fmt.Sprintf("Error: Unable to create the map, Reason: %v", err))
		return nil
	}
	maxX, err := strconv.Atoi(args[1])
	if err != nil || maxX < 0 {
		return fail(fmt.Errorf("invalid maxx %q", args[1]))
	}
	maxY, err := strconv.Atoi(args[2])
	if err != nil || maxY < 0 {
		return fail(fmt.Errorf("invalid maxy %q", args[2]))
	}
	if maps.IsWall(tile) {
		return fail(errors.New("the floor cannot be a wall"))
	}

	source := maps.Blank(name, maxX, maxY, tile)
	grid, err := maps.Parse(name, source)
	if err != nil {
		return fail(err)
	}
	grid.Name = name
	if err := w.mapStore.Write(name, source); err != nil {
		return fail(err)
	}
	w.grids[name] = grid

	w.changeMap(s, 0, 0, name)
	w.AdminTell(fmt.Sprintf("%s Has created a new map: %s", s.Name, name))
	w.logger.Info("map created", "map", name, "by", s.Name)
	return nil
}

func (w *World) cmdRemMap(s *player.Session, args []string, _ string) error {
	name := s.Data.Map
	if len(args) > 0 {
		name = args[0]
	}
	g := w.cfg.Gameplay
	if name == g.SpawnMap || name == g.DeathMap {
		w.say(s, "Error: This map cannot be deleted")
		return nil
	}

	if err := w.mapStore.Remove(name); err != nil {
		if errors.Is(err, maps.ErrNotFound) {
			if _, loaded := w.grids[name]; !loaded {
				w.say(s, "That map does not exist")
				return nil
			}
		} else {
			w.say(s, fmt.Sprintf("Error: Unable to delete the map, Reason: %v", err))
			return nil
		}
	}
	delete(w.grids, name)

	w.say(s, "Success")
	w.AdminTell(fmt.Sprintf("%s Have deleted the map %s", s.Name, name))
	for _, p := range w.players.GetAll() {
		if p.Data.Map == name {
			w.changeMap(p, 0, 0, g.SpawnMap)
		}
	}
	w.logger.Info("map removed", "map", name, "by", s.Name)
	return nil
}

func (w *World) cmdGive(s *player.Session, args []string, _ string) error {
	amount, err := strconv.Atoi(args[2])
	if err != nil {
		w.say(s, fmt.Sprintf("Error: Unable to give, Reason: %v", err))
		return nil
	}
	target, ok := w.players.GetByName(args[0])
	if !ok {
		w.say(s, msgPlayerNotFound)
		return nil
	}
	w.give(target, args[1], amount)
	w.AdminTell(fmt.Sprintf("%s has just given %s %d %ss", s.Name, target.Name, amount, args[1]))
	return nil
}

func (w *World) cmdGiveAll(s *player.Session, args []string, _ string) error {
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		w.say(s, fmt.Sprintf("Error: Unable to give, Reason: %v", err))
		return nil
	}
	for _, p := range w.players.GetAll() {
		w.give(p, args[0], amount)
	}
	w.AdminTell(fmt.Sprintf("%s has just given everyone %d %ss", s.Name, amount, args[0]))
	return nil
}

func (w *World) cmdNote(s *player.Session, _ []string, rest string) error {
	w.note = rest
	if err := w.saveServer(); err != nil {
		return err
	}
	w.Notify(fmt.Sprintf("%s Have just changed the server note to %s", s.Name, rest))
	return nil
}

func (w *World) cmdWho(s *player.Session, _ []string, _ string) error {
	w.Send(s, &protocol.Buffer{Text: w.whoText()})
	return nil
}

func (w *World) cmdWhere(s *player.Session, _ []string, _ string) error {
	grid, ok := w.grids[s.Data.Map]
	if !ok {
		w.say(s, "Unknown location")
		return nil
	}
	zone, ok := grid.ZoneAt(s.Data.X, s.Data.Y)
	if !ok {
		w.say(s, "Unknown location")
		return nil
	}
	w.say(s, zone)
	return nil
}
