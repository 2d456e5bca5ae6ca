package main

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"ai-tutor-be/internal/bootstrap"
	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/pkg/tutor/state"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	askConversation string
	askLesson       int
	askPreferences  string
	askLocal        bool
)

var (
	userColor  = color.New(color.FgCyan, color.Bold)
	tutorColor = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask the tutor; without arguments, read questions from stdin",
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "c1", "conversation id")
	askCmd.Flags().IntVarP(&askLesson, "lesson", "l", 0, "restrict references to a lesson (0 = any)")
	askCmd.Flags().StringVar(&askPreferences, "preferences", "", "learner preferences")
	askCmd.Flags().BoolVar(&askLocal, "local", false, "run the pipeline in-process with in-memory storage")
}

// asker answers one question.
type asker func(ctx context.Context, question string) (string, error)

func runAsk(cmd *cobra.Command, args []string) error {
	ask, cleanup, err := newAsker()
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) > 0 {
		return askOnce(cmd.Context(), ask, strings.Join(args, " "))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		userColor.Print("you> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "/quit" {
			return nil
		}
		if err := askOnce(cmd.Context(), ask, question); err != nil {
			errColor.Println(err)
		}
	}
}

func askOnce(ctx context.Context, ask asker, question string) error {
	start := time.Now()
	answer, err := ask(ctx, question)
	if err != nil {
		return err
	}
	tutorColor.Println(answer)
	dimColor.Printf("(%v)\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func lessonID() *int {
	if askLesson <= 0 {
		return nil
	}
	lesson := askLesson
	return &lesson
}

func newAsker() (asker, func(), error) {
	if askLocal {
		return newLocalAsker()
	}

	err := postJSON("/tutor/v1/conversations", dto.CreateConversationRequest{Id: askConversation, UserId: userID}, nil)
	var se *statusError
	if err != nil && !(errors.As(err, &se) && se.Code == http.StatusConflict) {
		return nil, nil, err
	}

	return func(_ context.Context, question string) (string, error) {
		var out dto.InvokeResponse
		err := postJSON("/tutor/v1/invoke", dto.InvokeRequest{
			UserId:         userID,
			ConversationId: askConversation,
			UserInput:      question,
			LessonId:       lessonID(),
			Preferences:    askPreferences,
		}, &out)
		return out.Result, err
	}, func() {}, nil
}

// newLocalAsker runs the whole pipeline in this process. Model providers
// still come from the environment.
func newLocalAsker() (asker, func(), error) {
	cfg := config.Load()
	cfg.Tutor.ConversationBackend = "memory"
	cfg.Tutor.SemanticBackend = "memory"
	cfg.App.PipelineLogPath = ""

	container, err := bootstrap.NewContainer(nil, cfg, bootstrap.Options{DisableEvents: true})
	if err != nil {
		return nil, nil, err
	}

	ask := func(ctx context.Context, question string) (string, error) {
		err := container.Conversations.Create(ctx, &entity.Conversation{Id: askConversation, UserId: userID})
		if err != nil && !errors.Is(err, tutorerr.ErrConversationExists) {
			return "", err
		}
		return container.Pipeline.Invoke(ctx, state.Request{
			UserID:         userID,
			ConversationID: askConversation,
			UserInput:      question,
			LessonID:       lessonID(),
			Preferences:    askPreferences,
		})
	}
	return ask, container.Close, nil
}
