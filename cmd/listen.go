package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/voice2issue/internal/audio"
	"github.com/danielolaszy/voice2issue/internal/config"
	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/speech/google"
	"github.com/danielolaszy/voice2issue/internal/transcript"
	"github.com/danielolaszy/voice2issue/internal/workflow"
)

// ErrNothingRecognized is returned by listen when the transcript is empty.
var ErrNothingRecognized = errors.New("nothing was recognized")

// recognizerFactory builds the speech recognizer of the listen command. The
// returned closer releases it.
var recognizerFactory = func(ctx context.Context, cfg *config.Config) (transcript.Recognizer, io.Closer, error) {
	logger := logging.GetLogger()
	mic := audio.NewMicrophone(cfg.Speech.SampleRate, logger)
	r, err := google.New(ctx, mic, cfg.Speech.SampleRate, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}

// listenCmd transcribes the microphone and publishes the result.
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Dictate an issue through the microphone",
	Long: `Dictate an issue through the microphone.

Speech is transcribed with Google Cloud Speech-to-Text (credentials from
GOOGLE_APPLICATION_CREDENTIALS) while you speak. Press Enter to stop: the
transcript is then extracted and published, unless --dry-run is given.

Microphone capture requires a build with -tags portaudio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		recognizer, closer, err := recognizerFactory(ctx, appConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize speech recognition: %w", err)
		}
		defer closer.Close()

		out := &syncWriter{w: cmd.OutOrStdout()}
		text, err := dictate(ctx, recognizer, cmd.InOrStdin(), out)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}

		fmt.Fprintf(out, "Transcript: %s\n\n", text)
		if text == "" && !appConfig.DemoMode {
			return ErrNothingRecognized
		}
		if dryRun {
			return nil
		}

		result, err := newWorkflow().Run(ctx, workflow.Request{VoiceInput: text})
		if err != nil {
			return fmt.Errorf("failed to create issue: %w", err)
		}
		printDraft(out, result.Draft, string(result.Source))
		printPublication(out, result.Publication, appConfig.Issue.AutomationComment)
		return nil
	},
}

func init() {
	listenCmd.Flags().Bool("dry-run", false, "Print the transcript without publishing")
}

// dictate runs a transcript session until a line is read from in or ctx is
// done, echoing the running transcript to out.
func dictate(ctx context.Context, recognizer transcript.Recognizer, in io.Reader, out io.Writer) (string, error) {
	session := transcript.NewSession(ctx, recognizer,
		transcript.WithLanguage(appConfig.Speech.Language),
		transcript.WithRestartDelays(appConfig.Speech.RestartDelay, appConfig.Speech.ErrorRestartDelay),
		transcript.WithUpdateHandler(func(text string) {
			fmt.Fprintf(out, "\r\033[K%s", text)
		}),
	)
	defer session.Close()

	if err := session.Start(); err != nil {
		return "", fmt.Errorf("failed to start listening: %w", err)
	}
	fmt.Fprintf(out, "Listening (%s), press Enter to stop...\n", appConfig.Speech.Language)

	waitForLine(ctx, in)
	if ctx.Err() != nil {
		return "", nil
	}

	if err := session.Stop(); err != nil {
		return "", err
	}
	snap, err := session.Snapshot()
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out)
	if snap.Error != "" {
		logging.Warn("recognition reported an error", "error", snap.Error)
	}
	return snap.Text(), nil
}

func waitForLine(ctx context.Context, in io.Reader) {
	line := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(in).ReadString('\n')
		close(line)
	}()

	select {
	case <-line:
	case <-ctx.Done():
	}
}

// syncWriter serializes writes from the session goroutine and the command.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
