package controller

// ActionMenu maps every action the reasoning oracle may pick to the
// low-level environment command it compiles to. Anything outside this
// menu is rejected at parse time.
var ActionMenu = map[string]string{
	"move_forward":  "move 1",
	"turn_left":     "turn -1",
	"turn_right":    "turn 1",
	"place_block":   "use 1",
	"mine_block":    "attack 1",
	"jump_forward":  "jump 1",
	"select_slot_3": "hotbar.3 1", // cobblestone
	"select_slot_4": "hotbar.4 1", // wood planks
	"select_slot_5": "hotbar.5 1", // brick blocks
	"select_slot_6": "hotbar.6 1", // glass
	"select_slot_7": "hotbar.7 1", // torches
	"look_around":   "turn 1",
	"wait":          "move 0",
}

// DefaultAction is published when the oracle picks something outside the
// menu.
const DefaultAction = "move_forward"

// FallbackAction is published when the oracle is unreachable; standing
// still is the safe choice when there is no reasoning behind a move.
const FallbackAction = "wait"

// ValidAction reports whether the action is in the menu.
func ValidAction(action string) bool {
	_, ok := ActionMenu[action]
	return ok
}

// EnvironmentCommand returns the environment command for an action, or
// the empty string for unknown actions.
func EnvironmentCommand(action string) string {
	return ActionMenu[action]
}
