// gameclient/ws.go
package gameclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tilemine/gameserver/network"
)

// ErrRoomFull 容量拒绝，与一般连接失败区分开
var ErrRoomFull = errors.New("room is full")

// wsRoomConn 在 gorilla websocket 连接上说服务器的二进制帧协议。
type wsRoomConn struct {
	conn      *websocket.Conn
	sessionID string
	roomID    string
	sendMutex sync.Mutex
}

func (c *wsRoomConn) SessionID() string { return c.sessionID }
func (c *wsRoomConn) RoomID() string    { return c.roomID }

func (c *wsRoomConn) Send(msgID uint16, data []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, network.EncodeFrame(msgID, data))
}

func (c *wsRoomConn) ReadPacket() (*network.Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return network.DecodeFrame(data)
}

func (c *wsRoomConn) Close() error {
	return c.conn.Close()
}

// JoinOrCreate 拨号并完成入房握手。roomID 为空时由服务器挑选或新建房间。
// The handshake blocks until the server answers with an ack or a rejection.
func JoinOrCreate(ctx context.Context, url, roomID string) (RoomConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	req, _ := json.Marshal(network.JoinRoomRequest{RoomID: roomID})
	if err := conn.WriteMessage(websocket.BinaryMessage, network.EncodeFrame(network.MsgTypeJoinRoom, req)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("await join ack: %w", err)
		}
		pkt, err := network.DecodeFrame(data)
		if err != nil {
			continue
		}

		switch pkt.MsgID {
		case network.MsgTypeJoinAck:
			var ack network.JoinAck
			if err := json.Unmarshal(pkt.Data, &ack); err != nil {
				conn.Close()
				return nil, fmt.Errorf("bad join ack: %w", err)
			}
			return &wsRoomConn{conn: conn, sessionID: ack.SessionID, roomID: ack.RoomID}, nil
		case network.MsgTypeJoinRejected:
			var rej network.JoinRejected
			_ = json.Unmarshal(pkt.Data, &rej)
			conn.Close()
			if rej.Reason == network.RejectReasonRoomFull {
				return nil, ErrRoomFull
			}
			return nil, fmt.Errorf("join rejected: %s", rej.Reason)
		default:
			// 握手完成前忽略其他推送
		}
	}
}
