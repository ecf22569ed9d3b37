package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"quantsim/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Preset 描述一个可复用的策略配置。
type Preset struct {
	Name        string         `mapstructure:"name" yaml:"name"`
	Kind        string         `mapstructure:"kind" yaml:"kind"`
	Description string         `mapstructure:"description" yaml:"description"`
	Version     int            `mapstructure:"version" yaml:"version"`
	Params      map[string]any `mapstructure:"params" yaml:"params"`
	Schema      map[string]any `mapstructure:"schema" yaml:"schema"`

	schemaCompiled *jsonschema.Schema
}

// presetFile 映射 strategies.yaml。
type presetFile struct {
	Strategies map[string]Preset `mapstructure:"strategies" yaml:"strategies"`
}

// RegistrySnapshot 公开的预设快照。
type RegistrySnapshot struct {
	Version  int64
	LoadedAt time.Time
	Presets  map[string]Preset
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(RegistrySnapshot)

// Registry loads strategy presets from a YAML file and reloads them when
// the file changes, so running services pick up tuning without a restart.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  RegistrySnapshot
	listeners []ChangeListener
}

// NewRegistry 读取预设文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy presets failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("strategy preset reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前预设集。
func (r *Registry) Snapshot() RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRegistrySnapshot(r.snapshot)
}

// Preset 返回指定名称的预设。
func (r *Registry) Preset(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Presets[strings.TrimSpace(name)]
	return p, ok
}

// Names returns the registered preset names in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.snapshot.Presets))
	for name := range r.snapshot.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build validates the named preset's params against its schema and
// instantiates the strategy.
func (r *Registry) Build(name string) (Strategy, error) {
	p, ok := r.Preset(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy preset: %s (have %v)", name, r.Names())
	}
	if err := p.Validate(p.Params); err != nil {
		return nil, fmt.Errorf("preset %s params invalid: %w", name, err)
	}
	return New(p.Kind, p.Params)
}

// AddListener 注册重载回调。
func (r *Registry) AddListener(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readPresetFile(r.path)
	if err != nil {
		return err
	}
	presets := make(map[string]Preset)
	for name, p := range cfg.Strategies {
		norm := normalizePreset(name, p)
		presets[norm.Name] = norm
	}
	r.mu.Lock()
	r.snapshot = RegistrySnapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Presets:  presets,
	}
	r.mu.Unlock()
	logger.Infof("Strategy registry loaded %d presets from %s", len(presets), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneRegistrySnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("strategy preset listener")
			cb(snap)
		}(fn)
	}
}

func normalizePreset(name string, p Preset) Preset {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = strings.TrimSpace(name)
	}
	p.Kind = strings.TrimSpace(p.Kind)
	if p.Version <= 0 {
		p.Version = 1
	}
	p.Description = strings.TrimSpace(p.Description)
	if len(p.Schema) > 0 {
		if compiled, err := compileSchema(p.Schema); err != nil {
			logger.Errorf("strategy preset schema compile failed name=%s: %v", p.Name, err)
		} else {
			p.schemaCompiled = compiled
		}
	}
	return p
}

// Validate 根据预设 schema 校验参数。
func (p Preset) Validate(params map[string]any) error {
	if p.schemaCompiled == nil {
		return nil
	}
	return p.schemaCompiled.Validate(normalizeJSONTypes(params))
}

// normalizeJSONTypes 递归将数值统一为 float64，YAML 解码出的 int 会导致
// jsonschema 的 multipleOf/minimum 判断行为不一致。
func normalizeJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeJSONTypes(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeJSONTypes(child)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return val
	}
}

func cloneRegistrySnapshot(src RegistrySnapshot) RegistrySnapshot {
	dst := RegistrySnapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Presets:  make(map[string]Preset, len(src.Presets)),
	}
	for name, p := range src.Presets {
		dst.Presets[name] = p
	}
	return dst
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readPresetFile(path string) (presetFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return presetFile{}, fmt.Errorf("read strategy presets failed: %w", err)
	}
	var cfg presetFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return presetFile{}, fmt.Errorf("parse strategy presets failed: %w", err)
	}
	return cfg, nil
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
