package lua

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrPermission     = errors.New("you don't have permission to use this command")
)

type CommandPermission int

const (
	PermissionNone CommandPermission = iota
	PermissionAdmin
	PermissionDev
)

type LuaCommand struct {
	Name        string
	Aliases     []string
	Permission  CommandPermission
	Description string
	Usage       string
	Handler     string
	VM          *VM
}

type CommandManager struct {
	commands map[string]*LuaCommand
	aliases  map[string]string
	logger   *slog.Logger
}

func NewCommandManager(logger *slog.Logger) *CommandManager {
	return &CommandManager{
		commands: make(map[string]*LuaCommand),
		aliases:  make(map[string]string),
		logger:   logger,
	}
}

func (cm *CommandManager) LoadCommands(commandsDir string, api *GameAPI) error {
	files, err := os.ReadDir(commandsDir)
	if err != nil {
		return fmt.Errorf("failed to read commands directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".lua") {
			continue
		}

		commandPath := filepath.Join(commandsDir, file.Name())
		if err := cm.LoadCommandFile(commandPath, api); err != nil {
			cm.logger.Warn("failed to load command file", "file", file.Name(), "error", err)
			continue
		}
	}

	cm.logger.Info("loaded lua commands", "count", len(cm.commands))
	return nil
}

func (cm *CommandManager) LoadCommandFile(path string, api *GameAPI) error {
	vm := NewVM()

	if api != nil {
		api.RegisterFunctions(vm)
	}

	if err := vm.LoadFile(path); err != nil {
		return err
	}

	return cm.define(vm)
}

// LoadCommandString registers a command from source text.
func (cm *CommandManager) LoadCommandString(code string, api *GameAPI) error {
	vm := NewVM()

	if api != nil {
		api.RegisterFunctions(vm)
	}

	if err := vm.LoadString(code); err != nil {
		return err
	}

	return cm.define(vm)
}

func (cm *CommandManager) define(vm *VM) error {
	name, ok := vm.StringGlobal("name")
	if !ok || name == "" {
		return fmt.Errorf("command missing 'name'")
	}

	cmd := &LuaCommand{
		Name:    strings.ToLower(name),
		VM:      vm,
		Handler: "execute",
	}

	if aliases, ok := vm.StringGlobal("aliases"); ok {
		for _, alias := range strings.Split(aliases, ",") {
			if alias = strings.ToLower(strings.TrimSpace(alias)); alias != "" {
				cmd.Aliases = append(cmd.Aliases, alias)
			}
		}
	}

	if desc, ok := vm.StringGlobal("description"); ok {
		cmd.Description = desc
	}

	if usage, ok := vm.StringGlobal("usage"); ok {
		cmd.Usage = usage
	}

	if perm, ok := vm.StringGlobal("permission"); ok {
		cmd.Permission = parsePermission(perm)
	}

	if handler, ok := vm.StringGlobal("handler"); ok {
		cmd.Handler = handler
	}

	if !vm.HasFunction(cmd.Handler) {
		return fmt.Errorf("command %s: handler %s is not a function", cmd.Name, cmd.Handler)
	}

	cm.Register(cmd)
	return nil
}

func (cm *CommandManager) Register(cmd *LuaCommand) {
	cm.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		cm.aliases[alias] = cmd.Name
	}
}

func (cm *CommandManager) Get(name string) *LuaCommand {
	name = strings.ToLower(name)
	if canonical, ok := cm.aliases[name]; ok {
		return cm.commands[canonical]
	}
	return cm.commands[name]
}

// Execute runs a command's handler as handler(caller, args) and returns the
// string it yields, if any.
func (cm *CommandManager) Execute(caller Caller, cmdName string, args []string) (string, error) {
	cmd := cm.Get(cmdName)
	if cmd == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmdName)
	}

	if !hasPermission(caller, cmd.Permission) {
		return "", ErrPermission
	}

	result, err := cmd.VM.CallHandler(cmd.Handler, caller, cmdName, args)
	if err != nil {
		return "", fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

// List returns the commands caller may run, sorted by name.
func (cm *CommandManager) List(caller Caller) []*LuaCommand {
	var commands []*LuaCommand
	for _, cmd := range cm.commands {
		if hasPermission(caller, cmd.Permission) {
			commands = append(commands, cmd)
		}
	}
	sort.Slice(commands, func(i, j int) bool {
		return commands[i].Name < commands[j].Name
	})
	return commands
}

func parsePermission(perm string) CommandPermission {
	switch strings.ToLower(perm) {
	case "admin":
		return PermissionAdmin
	case "dev", "developer":
		return PermissionDev
	default:
		return PermissionNone
	}
}

func hasPermission(c Caller, required CommandPermission) bool {
	switch required {
	case PermissionAdmin:
		return c.Admin || c.Dev
	case PermissionDev:
		return c.Dev
	}
	return true
}
