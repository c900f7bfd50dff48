package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"avatarvoice/core"
	captureevents "avatarvoice/events/capture"
	convevents "avatarvoice/events/conversation"
	"avatarvoice/handlers/capture"
	"avatarvoice/handlers/conversation"
)

// readCommands feeds terminal lines to session until /quit or EOF.
func readCommands(in io.Reader, session *conversation.Orchestrator) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			if draft := session.InputText(); draft != "" {
				session.Submit(draft)
			}
		case "/quit", "/exit":
			return
		case "/rec":
			if session.CaptureState() == capture.Recording {
				session.StopRecording()
			} else {
				session.StartRecording()
			}
		default:
			session.Submit(line)
		}
	}
}

func consoleEmitter(out io.Writer, persona string) core.EventEmitter {
	return core.EmitterFunc(func(event core.IEvent) {
		switch ev := event.(type) {
		case *convevents.AssistantMessageAddedEvent:
			fmt.Fprintf(out, "%s: %s\n", persona, ev.Text)
		case *captureevents.CaptureStateChangedEvent:
			fmt.Fprintf(out, "[%s]\n", ev.State)
		case *captureevents.InputBufferUpdatedEvent:
			if ev.Text != "" {
				fmt.Fprintf(out, "> %s\n", ev.Text)
			}
		case *captureevents.CaptureFailedEvent:
			fmt.Fprintf(out, "! %s\n", ev.Message)
		}
	})
}
