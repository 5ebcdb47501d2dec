package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/orchestrator"
)

type askOptions struct {
	pdfPath       string
	questions     []string
	questionsFile string
}

func newAskCmd(global *globalOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:     "ask",
		Short:   "Answer questions about a PDF and print the results as JSON",
		Example: `  pdfqa ask --pdf data/handbook.pdf
  pdfqa ask --pdf handbook.pdf -q "Who is the CEO of the company?" --variant simple
  pdfqa ask --questions-file questions.txt --no-notify`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsk(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.pdfPath, "pdf", "data/handbook.pdf", "path to the PDF document")
	cmd.Flags().StringArrayVarP(&opts.questions, "question", "q", nil, "question to ask (repeatable)")
	cmd.Flags().StringVar(&opts.questionsFile, "questions-file", "", "file with one question per line")
	return cmd
}

func runAsk(cmd *cobra.Command, global *globalOptions, opts *askOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	questions, err := resolveQuestions(opts.questions, opts.questionsFile)
	if err != nil {
		return writeFatal(out, err)
	}
	cfg, err := loadConfig(global)
	if err != nil {
		return writeFatal(out, err)
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return writeFatal(out, err)
	}
	defer a.Close(ctx)

	a.pipeline.OnProgress(func(p orchestrator.Progress) {
		a.logger.Debug(ctx, "progress",
			zap.String("stage", string(p.Stage)),
			zap.String("status", string(p.Status)),
			zap.Int("question", p.QuestionIndex))
	})

	result, err := a.pipeline.Run(ctx, opts.pdfPath, questions)
	if err != nil {
		return writeFatal(out, err)
	}

	text, err := result.Indented()
	if err != nil {
		return writeFatal(out, err)
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

// writeFatal prints the error document and returns err so the process
// exits non-zero.
func writeFatal(w io.Writer, err error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(orchestrator.ErrorDocument(err)); encErr != nil {
		return encErr
	}
	return err
}
