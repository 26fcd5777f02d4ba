package network

const (
	MsgTypeHeartbeat = 1

	MsgTypeJoinRoom      = 101
	MsgTypeLeaveRoom     = 102
	MsgTypeJoinAck       = 103
	MsgTypeJoinRejected  = 104
	MsgTypeLogin         = 105
	MsgTypeLoginAck      = 106
	MsgTypeLoginRejected = 107

	MsgTypeUpdatePosition = 201
	MsgTypeMineReward     = 202

	MsgTypeRoomSnapshot  = 301
	MsgTypeSessionLeft   = 302
	MsgTypeRoomError     = 303
	MsgTypeBalanceUpdate = 304
)

// Join rejection reasons. RejectReasonRoomFull must stay distinguishable from a
// generic failure so clients can surface it separately.
const (
	RejectReasonRoomFull     = "room_full"
	RejectReasonRoomNotFound = "room_not_found"
)
