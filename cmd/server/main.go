package main

import (
	"context"
	"log"
	"time"

	"github.com/manonkim2/ai-character-chat/internal/chat"
	"github.com/manonkim2/ai-character-chat/internal/config"
	"github.com/manonkim2/ai-character-chat/internal/db"
	"github.com/manonkim2/ai-character-chat/internal/httpapi"
	"github.com/manonkim2/ai-character-chat/internal/store/rabbitmq"
	"github.com/manonkim2/ai-character-chat/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err := gdb.AutoMigrate(&chat.Character{}, &chat.Message{}, &chat.SaveJob{}); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	var cache chat.Cache
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable, character cache disabled addr=%s err=%v", cfg.RedisAddr, err)
	} else {
		cache = rds
	}
	cancel()

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, async save disabled url=%s err=%v", cfg.RabbitURL, err)
		rabbit = nil
	} else {
		defer rabbit.Close()
	}

	mode := "echo"
	if cfg.AnthropicAPIKey != "" {
		mode = "upstream"
	}
	log.Printf("server starting addr=%s relay_mode=%s", cfg.Addr, mode)

	r := httpapi.NewRouter(gdb, cfg, cache, rabbit)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
