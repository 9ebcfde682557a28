package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type stubStoreProvider struct {
	store UnitStore
}

func (p stubStoreProvider) UnitStore() UnitStore {
	return p.store
}

type stubStoreFactory struct {
	store  UnitStore
	client any
}

func (f *stubStoreFactory) BuildStores(client any) (StoreProvider, error) {
	f.client = client
	return stubStoreProvider{store: f.store}, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil {
		t.Fatalf("expected default error factory")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ConfigProvider == nil {
		t.Fatalf("expected default config provider")
	}
	if deps.OptionsResolver == nil {
		t.Fatalf("expected default options resolver")
	}
	if _, ok := deps.UnitStore.(*MemoryUnitStore); !ok {
		t.Fatalf("expected memory unit store by default, got %T", deps.UnitStore)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "postwork" {
		t.Fatalf("expected default service_name=postwork, got %q", cfg.ServiceName)
	}
	if cfg.Dispatch.Timeout != 30*time.Second {
		t.Fatalf("expected 30s dispatch timeout, got %s", cfg.Dispatch.Timeout)
	}
	if cfg.Dispatch.InsecureSkipVerify {
		t.Fatalf("expected tls verification on by default")
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	store := NewMemoryUnitStore()
	factory := &stubStoreFactory{store: store}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: Config{ServiceName: "resolved"}}
	sender := &stubSender{}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithPersistenceClient(persistenceClient),
		WithRepositoryFactory(factory),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithWebhookSender(sender),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("postwork.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.PersistenceClient != persistenceClient {
		t.Fatalf("expected custom persistence client override")
	}
	if factory.client != persistenceClient {
		t.Fatalf("expected repository factory to receive the persistence client")
	}
	if deps.UnitStore != store {
		t.Fatalf("expected factory-built unit store")
	}
	if deps.WebhookSender != sender {
		t.Fatalf("expected custom webhook sender")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	if got := svc.Config().Dispatch.Timeout; got != DefaultDispatchTimeout {
		t.Fatalf("expected dispatch defaults filled, got %s", got)
	}
}

func TestNewService_SenderFactoryReceivesDispatchConfig(t *testing.T) {
	var received DispatchConfig
	cfg := DefaultConfig()
	cfg.Dispatch.InsecureSkipVerify = true
	cfg.Dispatch.Timeout = 5 * time.Second

	_, err := NewService(cfg, WithSenderFactory(func(dispatch DispatchConfig) WebhookSender {
		received = dispatch
		return &stubSender{}
	}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !received.InsecureSkipVerify || received.Timeout != 5*time.Second {
		t.Fatalf("unexpected dispatch config %#v", received)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(MapConfigLoader{
		"service_name": "from-config",
		"callback": map[string]any{
			"url":     "https://config.example.com/cb",
			"api_key": "config-key",
		},
	})

	svc, err := NewService(Config{ServiceName: "from-runtime"}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Callback.URL != "https://config.example.com/cb" {
		t.Fatalf("expected config layer callback url, got %q", cfg.Callback.URL)
	}
	if cfg.Callback.APIKey != "config-key" {
		t.Fatalf("expected config layer api key, got %q", cfg.Callback.APIKey)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Callback.URL = "/relative"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected relative callback url to be rejected")
	}
	cfg = DefaultConfig()
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected empty service name to be rejected")
	}
}

func TestCfgxConfigProvider_AppliesDefaultsAndValidates(t *testing.T) {
	cfg, err := NewCfgxConfigProvider(nil).Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.ServiceName != DefaultConfig().ServiceName {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}

	_, err = NewCfgxConfigProvider(MapConfigLoader{
		"callback": map[string]any{"url": "relative/path"},
	}).Load(context.Background(), DefaultConfig())
	if err == nil {
		t.Fatalf("expected relative callback url to fail validation")
	}
}
