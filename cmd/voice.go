//go:build voice

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatarvoice/core"
	"avatarvoice/devices/portaudio"
	convevents "avatarvoice/events/conversation"
	"avatarvoice/factories"
	"avatarvoice/handlers/conversation"
	"avatarvoice/utils/audio"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var voiceNoAvatar bool

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Talks to the persona through the local speaker and microphone",
	Long: `Starts a terminal session.

Type a line to send it. An empty line sends the recorded transcript.
Commands:
  /rec   start or stop recording
  /quit  end the session`,
	Args: cobra.NoArgs,
	RunE: runVoice,
}

func init() {
	rootCmd.AddCommand(voiceCmd)
	voiceCmd.Flags().BoolVar(&voiceNoAvatar, "no-avatar", false, "do not start the avatar event server")
}

func runVoice(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := core.GetLogger().With(map[string]interface{}{"component": "voice"})
	settings := loadSettings(settingsPath)

	factory, err := factories.NewSessionFactory(settings, logger)
	if err != nil {
		return err
	}
	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	err = factory.Init(initCtx)
	cancelInit()
	if err != nil {
		return fmt.Errorf("init providers: %w", err)
	}
	defer factory.Cleanup()

	speaker, err := portaudio.NewSpeaker(logger)
	if err != nil {
		return err
	}
	mic := portaudio.NewMicrophone(portaudio.DefaultMicrophoneConfig(), logger)

	out := cmd.OutOrStdout()
	emitters := core.MultiEmitter{consoleEmitter(out, settings.Persona.Name)}
	var avatar *core.ExternalEventHandler
	if !voiceNoAvatar {
		avatar = core.NewExternalEventHandler(settings.Server.AvatarEventsAddr, logger)
		avatar.RegisterInputEvent("conversation.submit_text", func() core.IExternalInputEvent {
			return &convevents.SubmitTextEvent{}
		})
		emitters = append(emitters, avatar)
	}

	pipeline := factories.NewPipeline(factory, factories.PipelineConfig{LogDir: getEnv("LOG_DIR", "")}, logger)
	meta := factories.SessionMeta{
		ID:       fmt.Sprintf("voice-%s", uuid.New().String()[:8]),
		Username: settings.Username,
	}
	sessionIO := factories.SessionIO{
		NewSink: func(context.Context) (audio.Sink, error) {
			return speaker, nil
		},
		Microphone: mic,
		Emitter:    emitters,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	fmt.Fprintln(out, "Type a message, /rec to record, /quit to exit.")
	return pipeline.Run(ctx, meta, sessionIO, func(session *conversation.Orchestrator) {
		if avatar != nil {
			avatar.Initialize(ctx, session.Input())
		}
		session.Gesture()
		go func() {
			defer cancel()
			readCommands(cmd.InOrStdin(), session)
		}()
	})
}
