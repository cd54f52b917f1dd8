package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/gamefill/internal/config"
	"github.com/John-Robertt/gamefill/internal/domain"
	"github.com/John-Robertt/gamefill/internal/infra/fsx"
)

// exitError 携带进程退出码；cobra 的用法错误统一映射为 2。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 2
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	// 终端读取无法被 ctx 打断：第一次中断取消 ctx，恢复默认信号处理后第二次中断直接退出。
	context.AfterFunc(ctx, stop)

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		}
	}
	stop()
	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}

type rootOptions struct {
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "gamefill",
		Short:         "从多个来源汇总卡带资料并填写 Collecster 后台",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewDevelopmentConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
			if opts.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("初始化日志：%w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: 2, err: err}
	})
	root.AddCommand(newRunCmd(opts))
	return root
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport, tty bool) {
	summary := fmt.Sprintf("完成：done=%d aborted=%d failed=%d\n", rr.Summary.Done, rr.Summary.Aborted, rr.Summary.Failed)
	if tty {
		fmt.Fprint(stdout, summary)
		for _, it := range rr.Items {
			if it.Status == domain.StatusDone {
				continue
			}
			key := it.Key
			if key == "" {
				key = "<unknown>"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprint(stderr, summary)
}

// writeReport 原子写入报告文件，相对路径以 cwd 为基准。
func writeReport(path string, rr domain.RunReport) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(abs), filepath.Base(abs), append(b, '\n'))
}

func reportForError(code string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
			States:    []string{},
			Sources:   []string{},
			Skipped:   []string{},
			Attempts:  []domain.SourceAttempt{},
			Pictures:  []string{},
		}},
	}
	rr.Finalize()
	return rr
}

func configErrorCode(err error) string {
	if c := config.Code(err); c != "" {
		return c
	}
	return domain.ErrCodeUnexpected
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
