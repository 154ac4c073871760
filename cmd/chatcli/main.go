package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manonkim2/ai-character-chat/internal/client"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "relay server base URL")
	characterID := flag.String("character", "default-1", "character id")
	system := flag.String("system", "", "system prompt override")
	flag.Parse()

	consumer := client.NewConsumer(*baseURL, *characterID, *system)
	transcript := client.NewTranscript(nil)
	ctrl := client.NewController(consumer, transcript, *characterID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("character chat — type a message, /resend to retry the last turn, /quit to exit")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/resend":
			if err := ctrl.ResendLast(ctx); err != nil {
				log.Printf("resend: %v", err)
				continue
			}
		default:
			if err := ctrl.Send(ctx, line); err != nil {
				log.Printf("send: %v", err)
				continue
			}
		}

		printOutcome(ctrl)
		if ctx.Err() != nil {
			return
		}
	}
}

func printOutcome(ctrl *client.Controller) {
	msgs := ctrl.Transcript().Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	switch {
	case last.Role == client.RoleAssistant:
		fmt.Println(last.Content)
	case last.Failed:
		fmt.Println("(응답 실패 — /resend 로 다시 시도)")
	case ctrl.State() == client.StateCancelled:
		fmt.Println("(중단됨)")
	}
}
