package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/i18nlens/store"
)

const (
	projectRoot = "/project"
	resRoot     = "src/main/resources"
)

func res(name string) string {
	return filepath.Join(projectRoot, resRoot, name)
}

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func newEngine(t *testing.T, fs afero.Fs, mutate ...func(*Options)) *Engine {
	t.Helper()
	opts := Options{Fs: fs, Root: projectRoot, ResourceRoot: resRoot}
	for _, m := range mutate {
		m(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, e.Reload(context.Background()))
	return e
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

type fakePrompter struct {
	confirm bool
	format  string
	path    string
	calls   []string
}

func (p *fakePrompter) Confirm(_ context.Context, title, _ string) (bool, error) {
	p.calls = append(p.calls, "confirm")
	return p.confirm, nil
}

func (p *fakePrompter) Select(_ context.Context, _ string, options []string) (string, error) {
	p.calls = append(p.calls, "select")
	return p.format, nil
}

func (p *fakePrompter) Input(_ context.Context, _ string, value string) (string, error) {
	p.calls = append(p.calls, "input")
	if p.path == "" {
		return value, nil
	}
	return p.path, nil
}

func TestNew(t *testing.T) {
	_, err := New(Options{Fs: afero.NewMemMapFs()})
	assert.Error(t, err, "missing root")

	_, err = New(Options{Fs: afero.NewMemMapFs(), Root: projectRoot, DiscoveryOrder: []string{"resources", "everywhere"}})
	assert.ErrorContains(t, err, "everywhere")

	e, err := New(Options{Fs: afero.NewMemMapFs(), Root: projectRoot})
	require.NoError(t, err)
	assert.Empty(t, e.AllKeys(), "index starts empty")
	assert.Empty(t, e.Locales())
}

func TestReload_FlatAndTree(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages.properties"):    "greeting.hello=Hello\n",
		res("messages_ko.properties"): "greeting.hello=안녕하세요\nempty.value=\n",
		res("messages_en.yml"):        "user:\n  login: Log in\n  count: 3\n  tags:\n    - a\n",
		projectRoot + "/random.txt":   "greeting.hello=ignored\n",
	})
	e := newEngine(t, fs)

	assert.Equal(t, []string{"default", "en", "ko"}, e.Locales())

	v, ok := e.Translation("greeting.hello", "ko")
	assert.True(t, ok)
	assert.Equal(t, "안녕하세요", v)

	v, ok = e.Translation("user.login", "en")
	assert.True(t, ok)
	assert.Equal(t, "Log in", v)

	v, ok = e.Translation("user.count", "en")
	assert.True(t, ok, "numbers are scalars")
	assert.Equal(t, "3", v)

	_, ok = e.Translation("user.tags", "en")
	assert.False(t, ok, "sequences are not scalars")
	_, ok = e.Translation("user", "en")
	assert.False(t, ok, "mappings are not scalars")
	_, ok = e.Translation("empty.value", "ko")
	assert.False(t, ok, "empty values are not indexed")
	_, ok = e.Translation("greeting.hello", "fr")
	assert.False(t, ok)

	src, ok := e.SourceFile("user.login", "en")
	assert.True(t, ok)
	assert.Equal(t, res("messages_en.yml"), src)

	assert.Equal(t, []string{"greeting.hello", "user.count", "user.login"}, e.AllKeys())
}

func TestReload_Idempotent(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages.properties"): "a.b=1\nc.d=2\n",
		res("messages_ko.yml"):     "a:\n  b: 하나\n",
	})
	e := newEngine(t, fs)
	before := e.AllKeys()
	beforeLocales := e.Locales()

	require.NoError(t, e.Reload(context.Background()))
	assert.Equal(t, before, e.AllKeys())
	assert.Equal(t, beforeLocales, e.Locales())
	v, _ := e.Translation("a.b", "ko")
	assert.Equal(t, "하나", v)
}

func TestReload_FirstDiscoveredWins(t *testing.T) {
	files := map[string]string{
		res("messages.properties"):      "shared.key=root\nroot.only=r\n",
		res("i18n/messages.properties"): "shared.key=nested\nnested.only=n\n",
	}

	e := newEngine(t, newFs(t, files))
	v, _ := e.Translation("shared.key", "default")
	assert.Equal(t, "root", v, "resource-root files are discovered before nested ones")
	src, _ := e.SourceFile("shared.key", "default")
	assert.Equal(t, res("messages.properties"), src)
	src, _ = e.SourceFile("nested.only", "default")
	assert.Equal(t, res("i18n/messages.properties"), src)

	// The project strategy walks in path order, which puts i18n/ first.
	e = newEngine(t, newFs(t, files), func(o *Options) {
		o.DiscoveryOrder = []string{StrategyProject}
	})
	v, _ = e.Translation("shared.key", "default")
	assert.Equal(t, "nested", v)
}

func TestReload_TreeMergeKeepsFirst(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_ko.yml"):      "user:\n  login: 로그인\n",
		res("i18n/messages_ko.yml"): "user:\n  login: 다른값\n  logout: 로그아웃\n",
	})
	e := newEngine(t, fs)

	v, _ := e.Translation("user.login", "ko")
	assert.Equal(t, "로그인", v)
	v, _ = e.Translation("user.logout", "ko")
	assert.Equal(t, "로그아웃", v)
	src, _ := e.SourceFile("user.logout", "ko")
	assert.Equal(t, res("i18n/messages_ko.yml"), src)
}

func TestReload_ProjectWideAndSkipDirs(t *testing.T) {
	fs := newFs(t, map[string]string{
		projectRoot + "/module/conf/message_fr.properties":  "a.b=fr\n",
		projectRoot + "/node_modules/x/messages_de.yml":     "a:\n  b: de\n",
		projectRoot + "/target/classes/messages.properties": "a.b=built\n",
	})
	e := newEngine(t, fs)

	assert.Equal(t, []string{"fr"}, e.Locales())
}

func TestReload_Basenames(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("application.yml"):               "spring:\n  messages:\n    basename: i18n/labels, classpath:errors\n",
		res("application-dev.properties"):    "spring.messages.basename=extra\n",
		res("i18n/labels_ko.properties"):     "label.ok=확인\n",
		res("errors.properties"):             "error.fatal=Fatal\n",
		res("errors_extra_stuff.properties"): "error.other=no\n",
		res("extra_ja.yml"):                  "extra:\n  x: エクストラ\n",
		res("unrelated_ko.properties"):       "u.x=no\n",
	})
	e := newEngine(t, fs, func(o *Options) {
		o.DiscoveryOrder = []string{StrategyBasenames}
	})

	assert.Equal(t, []string{"default", "ja", "ko"}, e.Locales())
	v, _ := e.Translation("label.ok", "ko")
	assert.Equal(t, "확인", v)
	v, _ = e.Translation("error.fatal", "default")
	assert.Equal(t, "Fatal", v)
	v, _ = e.Translation("extra.x", "ja")
	assert.Equal(t, "エクストラ", v)
	_, ok := e.Translation("error.other", "default")
	assert.False(t, ok)
	_, ok = e.Translation("u.x", "ko")
	assert.False(t, ok)
}

func TestReload_NoDoubleLoad(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("application.properties"): "spring.messages.basename=messages\n",
		res("messages_ko.properties"): "a.b=x\n",
	})
	e := newEngine(t, fs)

	s, ok := e.Snapshot().Store("ko")
	require.True(t, ok)
	assert.Equal(t, []string{res("messages_ko.properties")}, s.Files(),
		"three strategies find the file, it is loaded once")
}

func TestReload_MixedFormatSkipped(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_ko.properties"): "a.b=flat\n",
		res("messages_ko.yml"):        "c:\n  d: tree\n",
	})
	e := newEngine(t, fs)

	s, ok := e.Snapshot().Store("ko")
	require.True(t, ok)
	assert.Equal(t, store.FormatFlat, s.Format())
	_, ok = e.Translation("c.d", "ko")
	assert.False(t, ok)
}

func TestReload_BrokenFileSkipped(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_ko.properties"): "a.b=ok\n",
		res("messages_fr.yml"):        "a: [unclosed\n",
		res("messages_de.properties"): "bad=\\uZZZZ\n",
	})
	e := newEngine(t, fs)

	assert.Equal(t, []string{"ko"}, e.Locales())
}

func TestReload_Cancelled(t *testing.T) {
	fs := newFs(t, map[string]string{res("messages.properties"): "a.b=1\n"})
	e := newEngine(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, afero.WriteFile(fs, res("messages.properties"), []byte("a.b=2\n"), 0644))
	assert.ErrorIs(t, e.Reload(ctx), context.Canceled)

	v, _ := e.Translation("a.b", "default")
	assert.Equal(t, "1", v, "previous index stays live")
}

func TestPublish_DiscardsStale(t *testing.T) {
	e, err := New(Options{Fs: afero.NewMemMapFs(), Root: projectRoot})
	require.NoError(t, err)

	var fired int
	e.OnChange(func() { fired++ })

	newer := &Index{stores: map[string]store.Store{"ko": store.NewFlatStore()}}
	older := &Index{stores: map[string]store.Store{"en": store.NewFlatStore()}}
	assert.True(t, e.publish(2, newer))
	assert.False(t, e.publish(1, older))

	assert.Equal(t, []string{"ko"}, e.Locales())
	assert.Equal(t, 1, fired)
}

func TestReload_ConcurrentReaders(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages.properties"):    "a.b=1\n",
		res("messages_ko.properties"): "a.b=일\n",
	})
	e := newEngine(t, fs)

	var wg sync.WaitGroup
	var misses atomic.Int32
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				if _, ok := e.Translation("a.b", "ko"); !ok {
					misses.Add(1)
				}
				_ = e.AllKeys()
			}
		}()
	}
	for range 10 {
		require.NoError(t, e.Reload(context.Background()))
	}
	wg.Wait()
	assert.Zero(t, misses.Load(), "readers never see a partial index")
}

func TestResolve(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages.properties"):    "a.b=default\nonly.default=d\n",
		res("messages_ko.properties"): "a.b=한국어\n",
	})
	e := newEngine(t, fs, func(o *Options) {
		o.Fallback = []string{"ko", "default"}
	})

	v, locale, ok := e.Resolve("a.b")
	assert.True(t, ok)
	assert.Equal(t, "한국어", v)
	assert.Equal(t, "ko", locale)

	v, locale, ok = e.Resolve("only.default")
	assert.True(t, ok)
	assert.Equal(t, "d", v)
	assert.Equal(t, "default", locale)

	v, locale, _ = e.Resolve("a.b", "fr", "default")
	assert.Equal(t, "default", v)
	assert.Equal(t, "default", locale)

	_, _, ok = e.Resolve("missing.key")
	assert.False(t, ok)
}

func TestOnChange(t *testing.T) {
	fs := newFs(t, map[string]string{res("messages.properties"): "a.b=1\n"})
	e := newEngine(t, fs)

	var fired int
	cancel := e.OnChange(func() { fired++ })
	require.NoError(t, e.Reload(context.Background()))
	require.NoError(t, e.Reload(context.Background()))
	assert.Equal(t, 2, fired)

	cancel()
	require.NoError(t, e.Reload(context.Background()))
	assert.Equal(t, 2, fired)
}

func TestWriteTranslation_RoundTrip(t *testing.T) {
	values := []string{
		"plain",
		"a=b",
		"dots.in.value.",
		"안녕하세요, 세계",
		"colon: and # hash",
		"tab\tand\nnewline",
	}
	fs := newFs(t, map[string]string{
		res("messages.properties"): "# header\nexisting.key=old\n",
		res("messages_ko.yml"):     "# header\nexisting:\n  key: 옛값\n",
	})
	e := newEngine(t, fs)
	ctx := context.Background()

	for _, locale := range []string{"default", "ko"} {
		for _, v := range values {
			require.NoError(t, e.WriteTranslation(ctx, "existing.key", locale, v))
			got, ok := e.Translation("existing.key", locale)
			assert.True(t, ok, "%s %q", locale, v)
			assert.Equal(t, v, got, "locale %s", locale)

			require.NoError(t, e.WriteTranslation(ctx, "brand.new.key", locale, v))
			got, _ = e.Translation("brand.new.key", locale)
			assert.Equal(t, v, got, "locale %s", locale)
		}
	}

	assert.Contains(t, readFile(t, fs, res("messages.properties")), "# header\n")
	src, _ := e.SourceFile("brand.new.key", "ko")
	assert.Equal(t, res("messages_ko.yml"), src)
}

func TestWriteTranslation_OwningFile(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_ko.properties"):      "a.b=first\n",
		res("i18n/messages_ko.properties"): "c.d=second\n",
	})
	e := newEngine(t, fs)

	require.NoError(t, e.WriteTranslation(context.Background(), "c.d", "ko", "updated"))
	assert.Equal(t, "c.d=updated\n", readFile(t, fs, res("i18n/messages_ko.properties")))
	assert.Equal(t, "a.b=first\n", readFile(t, fs, res("messages_ko.properties")))

	require.NoError(t, e.WriteTranslation(context.Background(), "e.f", "ko", "new"))
	assert.Equal(t, "a.b=first\ne.f=new\n", readFile(t, fs, res("messages_ko.properties")),
		"new keys go to the locale's first file")
}

func TestWriteTranslation_CreatesFile(t *testing.T) {
	fs := newFs(t, map[string]string{res("messages.properties"): "a.b=1\n"})
	p := &fakePrompter{confirm: true, format: "yaml"}
	e := newEngine(t, fs, func(o *Options) { o.Prompter = p })

	require.NoError(t, e.WriteTranslation(context.Background(), "a.b", "fr", "un"))
	assert.Equal(t, []string{"confirm", "select", "input"}, p.calls)

	path := res("messages_fr.yml")
	assert.Equal(t, "a:\n  b: un\n", readFile(t, fs, path))
	v, _ := e.Translation("a.b", "fr")
	assert.Equal(t, "un", v)
	src, _ := e.SourceFile("a.b", "fr")
	assert.Equal(t, path, src)
}

func TestWriteTranslation_CustomPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := &fakePrompter{confirm: true, format: "properties", path: "conf/lang/messages_de.properties"}
	e := newEngine(t, fs, func(o *Options) {
		o.Prompter = p
		o.DiscoveryOrder = []string{StrategyProject}
	})

	require.NoError(t, e.WriteTranslation(context.Background(), "a.b", "de", "eins"))
	assert.Equal(t, "a.b=eins\n", readFile(t, fs, projectRoot+"/conf/lang/messages_de.properties"))
	v, _ := e.Translation("a.b", "de")
	assert.Equal(t, "eins", v)
}

func TestWriteTranslation_Declined(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := &fakePrompter{confirm: false}
	e := newEngine(t, fs, func(o *Options) { o.Prompter = p })

	require.NoError(t, e.WriteTranslation(context.Background(), "a.b", "fr", "un"))
	assert.Equal(t, []string{"confirm"}, p.calls)
	exists, err := afero.Exists(fs, res("messages_fr.yml"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, e.Locales())

	// Without a prompter creation is never offered.
	e = newEngine(t, fs)
	assert.NoError(t, e.WriteTranslation(context.Background(), "a.b", "fr", "un"))
}

func TestWriteTranslation_InvalidKey(t *testing.T) {
	e := newEngine(t, afero.NewMemMapFs())
	err := e.WriteTranslation(context.Background(), "not a key", "ko", "x")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDeleteKey(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages.properties"):    "a=1\nlong.text=first \\\n  second\nb=2\n",
		res("messages_ko.yml"):        "long:\n  text: 한국어\n  other: 기타\nz: 1\n",
		res("messages_en.properties"): "x.y=keep\n",
	})
	e := newEngine(t, fs)

	var fired int
	e.OnChange(func() { fired++ })

	require.NoError(t, e.DeleteKey(context.Background(), "long.text"))
	assert.Equal(t, "a=1\nb=2\n", readFile(t, fs, res("messages.properties")))
	assert.Equal(t, "long:\n  other: 기타\nz: 1\n", readFile(t, fs, res("messages_ko.yml")))
	assert.Equal(t, "x.y=keep\n", readFile(t, fs, res("messages_en.properties")))
	assert.NotContains(t, e.AllKeys(), "long.text")
	assert.Equal(t, 1, fired)

	err := e.DeleteKey(context.Background(), "long.text")
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestDeleteKey_RevealsShadowedValue(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages.properties"):      "k.v=root\n",
		res("i18n/messages.properties"): "k.v=nested\n",
	})
	e := newEngine(t, fs)

	require.NoError(t, e.DeleteKey(context.Background(), "k.v"))
	v, _ := e.Translation("k.v", "default")
	assert.Equal(t, "nested", v)
	assert.Equal(t, "k.v=nested\n", readFile(t, fs, res("i18n/messages.properties")))
}

func TestWriteTranslation_DuplicateFlatKey(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_en.properties"): "k.a=1\nk.a=2\n",
	})
	e := newEngine(t, fs)

	v, _ := e.Translation("k.a", "en")
	require.Equal(t, "2", v)

	require.NoError(t, e.WriteTranslation(context.Background(), "k.a", "en", "3"))
	v, _ = e.Translation("k.a", "en")
	assert.Equal(t, "3", v)
	assert.Equal(t, "k.a=1\nk.a=3\n", readFile(t, fs, res("messages_en.properties")))
}

func TestWriteTranslation_DottedYAMLKey(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_en.yml"): "k.a: Hello\nk:\n  b: other\n",
	})
	e := newEngine(t, fs)

	require.NoError(t, e.WriteTranslation(context.Background(), "k.a", "en", "Bye"))
	v, _ := e.Translation("k.a", "en")
	assert.Equal(t, "Bye", v)
	v, _ = e.Translation("k.b", "en")
	assert.Equal(t, "other", v)
}

func TestDeleteKey_WhitespaceSeparator(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_en.properties"): "k.a Hello\nk.b=2\n",
	})
	e := newEngine(t, fs)

	v, _ := e.Translation("k.a", "en")
	require.Equal(t, "Hello", v)

	require.NoError(t, e.DeleteKey(context.Background(), "k.a"))
	_, ok := e.Translation("k.a", "en")
	assert.False(t, ok)
	assert.Equal(t, "k.b=2\n", readFile(t, fs, res("messages_en.properties")))
}

func TestDeleteKey_DottedYAMLKey(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_en.yml"): "k.a: Hello\nother: x\n",
	})
	e := newEngine(t, fs)

	require.NoError(t, e.DeleteKey(context.Background(), "k.a"))
	_, ok := e.Translation("k.a", "en")
	assert.False(t, ok)
	assert.Equal(t, "other: x\n", readFile(t, fs, res("messages_en.yml")))
}

func TestReload_DottedAndNestedYAMLAcrossFiles(t *testing.T) {
	fs := newFs(t, map[string]string{
		res("messages_en.yml"):      "a.b: first\n",
		res("i18n/messages_en.yml"): "a:\n  b: second\n",
	})
	e := newEngine(t, fs)

	v, _ := e.Translation("a.b", "en")
	assert.Equal(t, "first", v)
	src, _ := e.SourceFile("a.b", "en")
	assert.Equal(t, res("messages_en.yml"), src)
}
