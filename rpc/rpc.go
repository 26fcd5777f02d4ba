package rpc

import (
	"net"
	"net/rpc"

	"github.com/tilemine/gameserver/logger"
	"github.com/tilemine/gameserver/models"
	"github.com/tilemine/gameserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// UserRPC 暴露给内部运维工具的余额接口。
// net/rpc 签名约定：导出方法、导出参数、第二参数为指针、返回 error。
type UserRPC struct {
	userService *services.UserService
}

func NewUserRPC(us *services.UserService) *UserRPC {
	return &UserRPC{userService: us}
}

type GetUserArgs struct {
	UserID int64
}

type GetUserReply struct {
	User  *models.GormUser
	Stats map[string]interface{}
}

func (u *UserRPC) GetUser(args *GetUserArgs, reply *GetUserReply) error {
	user, err := u.userService.GetUser(args.UserID)
	if err != nil {
		return err
	}
	stats, err := u.userService.GetUserStats(args.UserID)
	if err != nil {
		return err
	}
	reply.User = user
	reply.Stats = stats
	return nil
}

type AdjustBalanceArgs struct {
	UserID int64
	Delta  int64
}

type AdjustBalanceReply struct {
	Balance int64
}

func (u *UserRPC) AdjustBalance(args *AdjustBalanceArgs, reply *AdjustBalanceReply) error {
	balance, err := u.userService.AdjustBalance(args.UserID, args.Delta)
	if err != nil {
		return err
	}
	reply.Balance = balance
	return nil
}
