package protocol

// Message types published on the snapshot and activity topics.
const (
	TypeNodeConfig      = "node.config"
	TypeFullNode        = "node.full"
	TypeLastTask        = "node.last_task"
	TypeNetworkActivity = "network.activity"
)

// RoleConsole is the only publishing role.
const RoleConsole = "console"

// Protocol version.
const Version = 1
