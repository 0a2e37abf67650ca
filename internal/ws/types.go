package ws

const (
	// client - server
	MsgPing       = "ping"
	MsgClick      = "click"
	MsgShowTarget = "show_target"
	MsgSetName    = "set_name"
	MsgStartGame  = "start_game"
	MsgSubmit     = "submit_result"
	MsgEndGame    = "end_game"

	// server - client
	MsgReady     = "ready"
	MsgPong      = "pong"
	MsgState     = "state"
	MsgTx        = "tx"
	MsgCompleted = "completed"
	MsgAck       = "ack"
	MsgError     = "error"
)
