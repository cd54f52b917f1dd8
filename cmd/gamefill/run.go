package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/gamefill/internal/app/run"
	"github.com/John-Robertt/gamefill/internal/browser"
	"github.com/John-Robertt/gamefill/internal/config"
	"github.com/John-Robertt/gamefill/internal/domain"
	"github.com/John-Robertt/gamefill/internal/infra/cache"
	"github.com/John-Robertt/gamefill/internal/operator"
	"github.com/John-Robertt/gamefill/internal/scan"
	"github.com/John-Robertt/gamefill/internal/source"
	"github.com/John-Robertt/gamefill/internal/source/giantbomb"
	"github.com/John-Robertt/gamefill/internal/source/segaretro"
	"github.com/John-Robertt/gamefill/internal/source/wikipedia"
	"github.com/John-Robertt/gamefill/internal/target/collecster"
)

type runOptions struct {
	configPath      string
	credentialsFile string
	headless        bool
	skip            []string
	concept         string
	release         string
	interactive     bool
	cacheDir        string
	reportPath      string

	credentialsSet bool
	headlessSet    bool
	cacheDirSet    bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [barcode|name] <picture-folder>",
		Short: "查找一件藏品并在 Collecster 中依次创建 concept、release、occurrence",
		Long: `按查找键（条形码或名称）从 Sega Retro 读取作品信息，
用 Wikipedia / GiantBomb 补充开发商与发行商，然后在 Collecster 后台依次提交三张表单。
图片按文件名顺序从 picture-folder 中取用。

--interactive 时逐行从终端读取查找键，空行结束；此时 barcode|name 可省略。`,
		Args: func(cmd *cobra.Command, args []string) error {
			_, _, err := parseRunArgs(args, opts.interactive)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.credentialsSet = cmd.Flags().Changed("credentials-file")
			opts.headlessSet = cmd.Flags().Changed("headless")
			opts.cacheDirSet = cmd.Flags().Changed("cache-dir")
			if opts.interactive && (opts.concept != "" || opts.release != "") {
				return usageError("--concept/--release 不能与 --interactive 同时使用")
			}
			if opts.concept != "" && opts.release != "" {
				return usageError("--concept 与 --release 只能指定一个")
			}
			key, folder, err := parseRunArgs(args, opts.interactive)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), root.logger, opts, key, folder, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "配置文件路径（默认读取当前目录的 gamefill.yaml）")
	f.StringVar(&opts.credentialsFile, "credentials-file", "", "目标系统登录凭据 JSON 文件")
	f.BoolVar(&opts.headless, "headless", false, "无头模式启动浏览器")
	f.StringArrayVar(&opts.skip, "skip", nil, "跳过的补充来源（可重复），由操作员手工录入")
	f.StringVar(&opts.concept, "concept", "", "复用已存在的 concept 名称")
	f.StringVar(&opts.release, "release", "", "复用已存在的 release 名称")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "交互模式：逐行读取查找键")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "解析失败时保存页面快照的目录（空值关闭）")
	f.StringVar(&opts.reportPath, "report", "", "额外把 RunReport JSON 写入该文件")
	return cmd
}

// parseRunArgs 解析位置参数：非交互模式要求 key + folder；交互模式 key 可省略。
func parseRunArgs(args []string, interactive bool) (key, folder string, err error) {
	switch {
	case len(args) == 2:
		key, folder = strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	case len(args) == 1 && interactive:
		folder = strings.TrimSpace(args[0])
	case interactive:
		return "", "", usageError("用法：gamefill run --interactive [barcode|name] <picture-folder>")
	default:
		return "", "", usageError("用法：gamefill run <barcode|name> <picture-folder>")
	}
	if folder == "" {
		return "", "", usageError("picture-folder 不能为空")
	}
	if !interactive && key == "" {
		return "", "", usageError("查找键不能为空")
	}
	return key, folder, nil
}

func execute(ctx context.Context, log *zap.Logger, opts *runOptions, key, folder string, stdin io.Reader, stdout, stderr io.Writer) error {
	if log == nil {
		log = zap.NewNop()
	}
	tty := isTTY(stdout)
	finish := func(rr domain.RunReport) {
		emitReport(stdout, stderr, rr, tty)
		if opts.reportPath == "" {
			return
		}
		if err := writeReport(opts.reportPath, rr); err != nil {
			log.Warn("写入报告文件失败", zap.String("path", opts.reportPath), zap.Error(err))
		}
	}
	fail := func(code string, err error) error {
		finish(reportForError(code, err))
		return &exitError{code: 1}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fail(domain.ErrCodeUnexpected, err)
	}
	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:      opts.configPath,
		CredentialsFile: opts.credentialsFile,
		CredentialsSet:  opts.credentialsSet,
		Headless:        opts.headless,
		HeadlessSet:     opts.headlessSet,
		Skip:            opts.skip,
		CacheDir:        opts.cacheDir,
		CacheDirSet:     opts.cacheDirSet,
	})
	if err != nil {
		return fail(configErrorCode(err), err)
	}

	enrichers, err := source.NewRegistry(
		wikipedia.Provider{SearchURL: eff.WikipediaSearchURL, Site: eff.WikipediaSite},
		giantbomb.Provider{BaseURL: eff.GiantBombBaseURL, Platform: eff.GiantBombPlatform},
	)
	if err != nil {
		return fail(domain.ErrCodeUnexpected, err)
	}
	if err := enrichers.Validate(eff.Skip); err != nil {
		return usageError("%v", err)
	}

	files, err := scan.Pictures(folder, eff.PictureExtensions)
	if err != nil {
		return fail(domain.ErrCodeUnexpected, err)
	}
	pictures := domain.NewPictureQueue(files)
	log.Info("图片目录扫描完成", zap.String("folder", folder), zap.Int("count", len(files)))

	creds, err := config.LoadCredentials(eff.CredentialsFile)
	if err != nil {
		return fail(configErrorCode(err), err)
	}

	console := operator.NewConsole(stdin, stderr)
	timeouts := browser.Timeouts{PageLoad: eff.PageLoad, Human: eff.Human, Dependents: eff.Dependents, Poll: eff.Poll}

	b, err := browser.Launch(ctx, browser.LaunchConfig{DebuggerURL: eff.DebuggerURL, Bin: eff.BrowserBin, Headless: eff.Headless}, timeouts)
	if err != nil {
		return fail(domain.ErrCodeUnexpected, err)
	}
	// 释放顺序：先窗口后浏览器；任何一步失败都只记录。
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("关闭浏览器失败", zap.Error(err))
		}
	}()

	roles := []browser.Role{browser.RoleTarget, browser.RolePrimary}
	for _, name := range activeEnrichers(enrichers, eff.Skip) {
		roles = append(roles, browser.EnricherRole(name))
	}
	router, err := browser.Open(ctx, b, log, roles...)
	if err != nil {
		console.Acknowledge(context.Background(), err)
		return fail(domain.ErrCodeUnexpected, err)
	}
	defer func() {
		if err := router.Close(); err != nil {
			log.Warn("关闭窗口失败", zap.Error(err))
		}
	}()

	target := &collecster.Collecster{
		BaseURL:   eff.TargetBaseURL,
		HomeTitle: eff.TargetHomeTitle,
		Template:  templateFrom(eff.Template),
		Prompt:    console,
		Log:       log.Named("collecster"),
		Timeouts:  timeouts,
	}

	page, err := router.Switch(ctx, browser.RoleTarget)
	if err == nil {
		if creds == nil {
			console.Notify("未找到凭据文件，请在浏览器中手工登录")
		}
		err = target.Login(ctx, page, creds)
	}
	if err != nil {
		console.Acknowledge(context.Background(), err)
		return fail(domain.ErrCodeUnexpected, err)
	}

	var obs run.Observer
	if w, ok := pickProgressWriter(stdout, stderr); ok {
		obs = newProgressUI(w)
	}
	runner := &run.Runner{
		Config:    eff,
		Windows:   router,
		Primary:   segaretro.Provider{BaseURL: eff.PrimaryBaseURL, Region: eff.PrimaryRegion, System: eff.PrimarySystem},
		Enrichers: enrichers,
		Target:    target,
		Operator:  console,
		Log:       log,
		Observer:  obs,
	}
	if store := cache.New(eff.CacheDir); store.Enabled() {
		runner.Snapshots = store
	}

	var keys run.KeySource
	if opts.interactive {
		keys = &prefixedKeys{first: key, rest: console}
	} else {
		ks := run.Keys{key}
		keys = &ks
	}

	rr, runErr := runner.Run(ctx, keys, run.Request{
		Skip:     eff.Skip,
		Concept:  opts.concept,
		Release:  opts.release,
		Pictures: pictures,
	})
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, operator.ErrClosed) {
		console.Acknowledge(context.Background(), runErr)
	}
	finish(rr)
	if pictures.Remaining() > 0 {
		log.Info("剩余未使用的图片", zap.Int("count", pictures.Remaining()))
	}
	if runErr != nil || !rr.OK() {
		return &exitError{code: 1}
	}
	return nil
}

func activeEnrichers(reg source.Registry, skip []string) []string {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var out []string
	for _, name := range reg.Names() {
		if !skipped[name] {
			out = append(out, name)
		}
	}
	return out
}

func templateFrom(t config.TemplateFile) collecster.Template {
	return collecster.Template{
		Nature:              t.Nature,
		Region:              t.Region,
		SystemSpecification: t.SystemSpecification,
		Attributes:          append([]string(nil), t.Attributes...),
		Origin:              t.Origin,
		WorkingCondition:    t.WorkingCondition,
		Pictures:            append([]domain.PictureSlot(nil), t.Pictures...),
	}
}

// prefixedKeys 先给出命令行上的查找键（若有），再逐行读取终端输入。
type prefixedKeys struct {
	first string
	rest  run.KeySource
}

func (k *prefixedKeys) NextKey(ctx context.Context) (string, bool, error) {
	if k.first != "" {
		key := k.first
		k.first = ""
		return key, true, nil
	}
	key, ok, err := k.rest.NextKey(ctx)
	if errors.Is(err, operator.ErrClosed) {
		return "", false, nil
	}
	return key, ok, err
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
