package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/tilemine/gameserver/game"
	"github.com/tilemine/gameserver/gameclient"
	"github.com/tilemine/gameserver/models"
)

const moveStep = 0.3

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "server websocket URL")
	roomID := flag.String("room", "", "room to join (empty = join or create)")
	initData := flag.String("init-data", "", "Telegram init data (empty = play anonymously)")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// 本地世界：矿格与余额展示，与网络核心互不读写
	world := game.NewWorld(game.WorldConfig{})
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	world.UpdatePrizeLocations(game.GeneratePrizes(game.PrizeConfig{
		GridSize:  100,
		Count:     3,
		MinAmount: 1,
		MaxAmount: 10,
	}, rng))

	manager := gameclient.Shared(func(ctx context.Context) (gameclient.RoomConn, error) {
		return gameclient.JoinOrCreate(ctx, *addr, *roomID)
	})

	// 服务器推送的权威余额覆盖本地展示值
	manager.SetBalanceHandler(world.SetBalance)

	// 挖通矿格后上报入账；匿名会话只累计本地余额
	world.SetMinedCallback(func(p game.Prize) {
		if err := manager.ReportMined(p.Amount, p.X, p.Y); err != nil {
			log.Printf("Failed to report mined prize: %v", err)
		}
	})

	log.Printf("Connecting to %s", *addr)
	manager.Connect(context.Background())

	// 等待握手完成
	for manager.Status() == gameclient.StatusConnecting {
		time.Sleep(20 * time.Millisecond)
	}
	if manager.Status() != gameclient.StatusConnected {
		log.Fatalf("Connection failed: %s", manager.Err())
	}
	log.Printf("Joined room %s as session %s", manager.RoomID(), manager.SessionID())

	if *initData != "" {
		if err := manager.Login(*initData); err != nil {
			log.Printf("Login failed: %v", err)
		}
	}

	// 渲染节拍：推进远端玩家插值
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		last := time.Now()
		for range ticker.C {
			now := time.Now()
			manager.Remotes().Advance(now.Sub(last).Seconds())
			last = now
		}
	}()

	log.Println("Commands: w/a/s/d move, m mine, p players, b balance, q quit")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-interrupt:
			log.Println("Interrupt received, leaving room.")
			manager.Leave()
			return
		default:
		}

		text, err := reader.ReadString('\n')
		if err != nil {
			manager.Leave()
			return
		}

		switch strings.TrimSpace(text) {
		case "w":
			manager.SetLocalState(world.Step(models.DirectionUp, moveStep))
		case "s":
			manager.SetLocalState(world.Step(models.DirectionDown, moveStep))
		case "a":
			manager.SetLocalState(world.Step(models.DirectionLeft, moveStep))
		case "d":
			manager.SetLocalState(world.Step(models.DirectionRight, moveStep))
		case "m":
			result := world.Mine()
			switch {
			case !result.Mined:
				log.Println("No prize close enough to mine.")
			case result.Completed:
				log.Printf("Mined a prize worth %d! Balance: %d", result.Amount, world.Balance())
			default:
				p := world.Prizes()[result.PrizeIndex]
				log.Printf("Mining... %d%%", p.Progress)
			}
		case "p":
			players := manager.Remotes().Players()
			if len(players) == 0 {
				log.Println("No other players in the room.")
				continue
			}
			for id, p := range players {
				moving := ""
				if p.State.IsMoving {
					moving = " (moving)"
				}
				fmt.Printf("  %s: (%.2f, %.2f) facing %s%s\n",
					id[:8], p.RenderX, p.RenderY, p.State.Direction, moving)
			}
		case "b":
			log.Printf("Balance: %d, mined: %d", world.Balance(), world.MinedCount())
		case "q":
			manager.Leave()
			return
		default:
			// 空行或未知命令：标记停止移动
			manager.SetLocalState(world.Idle())
		}

		if errMsg := manager.Err(); errMsg != "" {
			log.Printf("Connection error: %s", errMsg)
		}
	}
}
