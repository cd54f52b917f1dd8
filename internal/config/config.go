package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/gamefill/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是在工作目录中自动发现的配置文件名。
	FileName = "gamefill.yaml"
	// DefaultCredentialsFile 是凭据文件的默认位置（相对工作目录）。
	DefaultCredentialsFile = "credentials.json"
)

// CLIArgs 是 CLI 中与配置相关的部分，保留“是否显式指定”的信息，
// 以保证 --headless=false 能覆盖配置文件中的 headless: true。
type CLIArgs struct {
	ConfigPath string

	CredentialsFile string
	CredentialsSet  bool

	Headless    bool
	HeadlessSet bool

	// Skip 与配置文件中的 skip 取并集。
	Skip []string

	CacheDir    string
	CacheDirSet bool
}

// FileConfig 对应 gamefill.yaml 的解析结构。所有字段都可省略。
type FileConfig struct {
	Target    TargetFile    `yaml:"target"`
	Primary   PrimaryFile   `yaml:"primary"`
	Wikipedia WikipediaFile `yaml:"wikipedia"`
	GiantBomb GiantBombFile `yaml:"giantbomb"`
	Skip      []string      `yaml:"skip"`
	Template  TemplateFile  `yaml:"template"`
	Pictures  PicturesFile  `yaml:"pictures"`
	Browser   BrowserFile   `yaml:"browser"`
	Timeouts  TimeoutsFile  `yaml:"timeouts"`
	// CacheDir 非空时，解析失败的页面 HTML 保存到 <cache_dir>/snapshots/。
	CacheDir string `yaml:"cache_dir"`
}

type TargetFile struct {
	BaseURL         string `yaml:"base_url"`
	HomeTitle       string `yaml:"home_title"`
	CredentialsFile string `yaml:"credentials_file"`
}

type PrimaryFile struct {
	BaseURL string `yaml:"base_url"`
	Region  string `yaml:"region"`
	System  string `yaml:"system"`
}

type WikipediaFile struct {
	SearchURL string `yaml:"search_url"`
	Site      string `yaml:"site"`
}

type GiantBombFile struct {
	BaseURL  string `yaml:"base_url"`
	Platform string `yaml:"platform"`
}

type TemplateFile struct {
	Nature              string               `yaml:"nature"`
	Region              string               `yaml:"region"`
	SystemSpecification string               `yaml:"system_specification"`
	Attributes          []string             `yaml:"attributes"`
	Origin              string               `yaml:"origin"`
	WorkingCondition    string               `yaml:"working_condition"`
	Pictures            []domain.PictureSlot `yaml:"pictures"`
}

type PicturesFile struct {
	Extensions []string `yaml:"extensions"`
}

type BrowserFile struct {
	Headless    *bool  `yaml:"headless"`
	Bin         string `yaml:"bin"`
	DebuggerURL string `yaml:"debugger_url"`
}

type TimeoutsFile struct {
	PageLoad   time.Duration `yaml:"page_load"`
	Human      time.Duration `yaml:"human"`
	Dependents time.Duration `yaml:"dependents"`
	Poll       time.Duration `yaml:"poll"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Source 是实际读取的配置文件；未读取任何文件时为空。
	Source string

	TargetBaseURL   string
	TargetHomeTitle string
	CredentialsFile string

	PrimaryBaseURL string
	PrimaryRegion  string
	PrimarySystem  string

	WikipediaSearchURL string
	WikipediaSite      string
	GiantBombBaseURL   string
	GiantBombPlatform  string

	Skip []string

	Template TemplateFile

	PictureExtensions []string

	Headless    bool
	BrowserBin  string
	DebuggerURL string

	PageLoad   time.Duration
	Human      time.Duration
	Dependents time.Duration
	Poll       time.Duration

	// CacheDir 为空表示不保存快照。
	CacheDir string
}

// Defaults 返回内置默认配置（Master System 卡带、欧洲发行、法国日期行）。
func Defaults() EffectiveConfig {
	return EffectiveConfig{
		TargetBaseURL:   "http://collecster.adnn.fr/admin/advideogame/",
		TargetHomeTitle: "Advideogame administration | Django site admin",
		CredentialsFile: DefaultCredentialsFile,

		PrimaryBaseURL: "https://segaretro.org",
		PrimaryRegion:  "FR",
		PrimarySystem:  "Sega Master System",

		WikipediaSearchURL: "https://www.google.fr/search",
		WikipediaSite:      "en.wikipedia.org",
		GiantBombBaseURL:   "https://www.giantbomb.com",
		GiantBombPlatform:  "SMS",

		Template: TemplateFile{
			Nature:              "Game",
			Region:              "EU",
			SystemSpecification: "Master System cartridge game [NTSC-U, PAL]",
			Attributes: []string{
				"[content]self",
				"[papers]manual",
				"[packaging]cartridge box",
				"[packaging]hang on tab",
				"[packaging]seal brand",
			},
			Origin:           "Original",
			WorkingCondition: "Yes",
			Pictures: []domain.PictureSlot{
				{Detail: "Front", Attribute: "[packaging]cartridge box"},
				{Detail: "Back", Attribute: "[packaging]cartridge box"},
				{Detail: "Group"},
				{Detail: "Side label", Attribute: "[packaging]cartridge box"},
			},
		},

		PictureExtensions: []string{"jpg"},

		PageLoad:   30 * time.Second,
		Human:      100 * time.Hour,
		Dependents: 10 * time.Second,
		Poll:       250 * time.Millisecond,
	}
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/gamefill.yaml（可选）
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认值。
// 相对路径（凭据文件）以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
	}

	eff, err := merge(Defaults(), cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.Source = cfgPath
	eff.CredentialsFile = absCleanFrom(cwdAbs, eff.CredentialsFile)
	if eff.CacheDir != "" {
		eff.CacheDir = absCleanFrom(cwdAbs, eff.CacheDir)
	}
	return eff, nil
}

func merge(eff EffectiveConfig, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}

	set(&eff.TargetBaseURL, fc.Target.BaseURL)
	set(&eff.TargetHomeTitle, fc.Target.HomeTitle)
	set(&eff.CredentialsFile, fc.Target.CredentialsFile)
	if cli.CredentialsSet {
		eff.CredentialsFile = strings.TrimSpace(cli.CredentialsFile)
	}

	set(&eff.PrimaryBaseURL, fc.Primary.BaseURL)
	set(&eff.PrimaryRegion, fc.Primary.Region)
	set(&eff.PrimarySystem, fc.Primary.System)

	set(&eff.WikipediaSearchURL, fc.Wikipedia.SearchURL)
	set(&eff.WikipediaSite, fc.Wikipedia.Site)
	set(&eff.GiantBombBaseURL, fc.GiantBomb.BaseURL)
	set(&eff.GiantBombPlatform, fc.GiantBomb.Platform)

	eff.Skip = unionLower(fc.Skip, cli.Skip)

	set(&eff.CacheDir, fc.CacheDir)
	if cli.CacheDirSet {
		eff.CacheDir = strings.TrimSpace(cli.CacheDir)
	}

	t := fc.Template
	set(&eff.Template.Nature, t.Nature)
	set(&eff.Template.Region, t.Region)
	set(&eff.Template.SystemSpecification, t.SystemSpecification)
	set(&eff.Template.Origin, t.Origin)
	set(&eff.Template.WorkingCondition, t.WorkingCondition)
	if len(t.Attributes) > 0 {
		eff.Template.Attributes = append([]string(nil), t.Attributes...)
	}
	if len(t.Pictures) > 0 {
		for i, p := range t.Pictures {
			if strings.TrimSpace(p.Detail) == "" {
				return EffectiveConfig{}, fmt.Errorf("template.pictures[%d].detail 不能为空", i)
			}
		}
		eff.Template.Pictures = append([]domain.PictureSlot(nil), t.Pictures...)
	}

	if len(fc.Pictures.Extensions) > 0 {
		exts := make([]string, 0, len(fc.Pictures.Extensions))
		for _, e := range fc.Pictures.Extensions {
			e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
			if e == "" {
				return EffectiveConfig{}, fmt.Errorf("pictures.extensions 不能包含空值")
			}
			exts = append(exts, e)
		}
		eff.PictureExtensions = exts
	}

	if fc.Browser.Headless != nil {
		eff.Headless = *fc.Browser.Headless
	}
	if cli.HeadlessSet {
		eff.Headless = cli.Headless
	}
	set(&eff.BrowserBin, fc.Browser.Bin)
	set(&eff.DebuggerURL, fc.Browser.DebuggerURL)

	for _, d := range []struct {
		dst *time.Duration
		v   time.Duration
		key string
	}{
		{&eff.PageLoad, fc.Timeouts.PageLoad, "page_load"},
		{&eff.Human, fc.Timeouts.Human, "human"},
		{&eff.Dependents, fc.Timeouts.Dependents, "dependents"},
		{&eff.Poll, fc.Timeouts.Poll, "poll"},
	} {
		if d.v < 0 {
			return EffectiveConfig{}, fmt.Errorf("timeouts.%s 不能为负数", d.key)
		}
		if d.v > 0 {
			*d.dst = d.v
		}
	}

	for _, u := range []struct{ key, v string }{
		{"target.base_url", eff.TargetBaseURL},
		{"primary.base_url", eff.PrimaryBaseURL},
		{"wikipedia.search_url", eff.WikipediaSearchURL},
		{"giantbomb.base_url", eff.GiantBombBaseURL},
	} {
		if err := validateHTTPURL(u.v); err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s 无效：%w", u.key, err)
		}
	}
	return eff, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少 host：%q", raw)
	}
	return nil
}

func unionLower(lists ...[]string) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range lists {
		for _, s := range l {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// LoadCredentials 读取凭据文件（JSON 对象：字段名 => 值，通常是 username/password）。
// 文件不存在时返回 nil 且不报错：此时由操作员在浏览器中手工登录。
func LoadCredentials(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	var creds map[string]string
	if err := json.Unmarshal(b, &creds); err != nil {
		return nil, &Error{Code: ErrCodeInvalid, Path: path, Err: fmt.Errorf("凭据文件必须是字符串键值对象：%w", err)}
	}
	return creds, nil
}
