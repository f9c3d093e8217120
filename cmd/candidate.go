package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/ai"
	"github.com/spigell/hire-responder/internal/applicant"
	"github.com/spigell/hire-responder/internal/report"
	"github.com/spigell/hire-responder/internal/store"
)

const defaultQuestions = 8

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Print an interview guide for a stored applicant",
	RunE:  interviewGuide,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the LLM about a stored applicant, interactively when no question is given",
	RunE:  askAboutApplicant,
}

func init() {
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(askCmd)

	interviewCmd.Flags().String("proposal-id", "", "proposal of the applicant")
	interviewCmd.Flags().Int("count", defaultQuestions, "number of questions")
	interviewCmd.Flags().Bool("mock", false, "use the offline oracle")
	interviewCmd.MarkFlagRequired("proposal-id")

	askCmd.Flags().String("proposal-id", "", "proposal of the applicant")
	askCmd.Flags().Bool("mock", false, "use the offline oracle")
	askCmd.MarkFlagRequired("proposal-id")
}

// candidateSession is what both commands need: the applicant and an oracle.
type candidateSession struct {
	applicant *applicant.Applicant
	oracle    ai.Oracle
	log       *zap.Logger
}

func openCandidate(ctx context.Context, cmd *cobra.Command) (*candidateSession, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	config, err := getConfig()
	if err != nil {
		log.Error("failed to parse config", zap.Error(err))
		return nil, err
	}

	proposalID, _ := cmd.Flags().GetString("proposal-id")
	useMock, _ := cmd.Flags().GetBool("mock")

	st, err := openStore(ctx, config)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		return nil, err
	}
	defer st.Close()

	a, err := st.Get(ctx, strings.TrimSpace(proposalID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("proposal %s is not stored, fetch it with `%s run --fetch-only` first", proposalID, app)
	}
	if err != nil {
		return nil, err
	}

	oracle, err := newOracle(ctx, config.AI, useMock, log)
	if err != nil {
		log.Error("failed to initialize oracle", zap.Error(err))
		return nil, err
	}

	return &candidateSession{applicant: a, oracle: oracle, log: log}, nil
}

func interviewGuide(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	session, err := openCandidate(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.log.Sync()

	count, _ := cmd.Flags().GetInt("count")

	questions, err := session.oracle.GenerateInterviewQuestions(ctx, session.applicant, session.applicant.JobDescription, count)
	if err != nil {
		return err
	}

	fmt.Printf("Interview guide for %s (%s)\n", session.applicant.Name, session.applicant.JobTitle)
	report.Questions(os.Stdout, questions)
	return nil
}

func askAboutApplicant(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	session, err := openCandidate(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.log.Sync()

	if len(args) > 0 {
		answer, err := session.ask(ctx, nil, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	var history []ai.ChatMessage
	for {
		prompt := promptui.Prompt{
			Label: fmt.Sprintf("Ask about %s (empty to exit)", session.applicant.Name),
		}

		query, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		query = strings.TrimSpace(query)
		if query == "" {
			return nil
		}

		answer, err := session.ask(ctx, history, query)
		if err != nil {
			session.log.Warn("no answer", zap.Error(err))
			continue
		}
		fmt.Println(answer)

		history = append(history,
			ai.ChatMessage{Role: "user", Content: query},
			ai.ChatMessage{Role: "assistant", Content: answer},
		)
	}
}

func (s *candidateSession) ask(ctx context.Context, history []ai.ChatMessage, query string) (string, error) {
	return s.oracle.Chat(ctx, s.applicant, s.applicant.JobDescription, history, query)
}
