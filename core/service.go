package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	store             UnitStore
	sitemapProvider   SitemapProvider
	payloadBuilder    *PayloadBuilder
	sender            WebhookSender
	jobEnqueuer       JobEnqueuer
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	UnitStore         UnitStore
	SitemapProvider   SitemapProvider
	WebhookSender     WebhookSender
	JobEnqueuer       JobEnqueuer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("postwork", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("postwork"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig.Dispatch = finalConfig.Dispatch.WithDefaults()
	finalConfig.Runner = finalConfig.Runner.WithDefaults()

	if builder.unitStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				builder.unitStore = stores.UnitStore()
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.unitStore = stores.UnitStore()
		}
	}
	if builder.unitStore == nil {
		builder.unitStore = NewMemoryUnitStore()
	}

	sender := builder.sender
	if sender == nil && builder.senderFactory != nil {
		sender = builder.senderFactory(finalConfig.Dispatch)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		store:             builder.unitStore,
		sitemapProvider:   builder.sitemapProvider,
		payloadBuilder: NewPayloadBuilder(PayloadBuilderConfig{
			Sitemap:     builder.sitemapProvider,
			CallbackURL: finalConfig.Callback.URL,
			APIKey:      finalConfig.Callback.APIKey,
		}),
		sender:      sender,
		jobEnqueuer: builder.jobEnqueuer,
		now:         builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Store() UnitStore {
	if s == nil {
		return nil
	}
	return s.store
}

func (s *Service) PayloadBuilder() *PayloadBuilder {
	if s == nil {
		return nil
	}
	return s.payloadBuilder
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		UnitStore:         s.store,
		SitemapProvider:   s.sitemapProvider,
		WebhookSender:     s.sender,
		JobEnqueuer:       s.jobEnqueuer,
	}
}

func (s *Service) GetBlock(ctx context.Context, id string) (block Block, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"block_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_block", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return Block{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		err = ValidationError("core: block id is required", goerrors.FieldError{
			Field:   "block_id",
			Message: "required",
		})
		return Block{}, err
	}
	block, err = s.store.GetBlock(ctx, id)
	if err != nil {
		err = s.mapError(err)
		return Block{}, err
	}
	fields["work_id"] = block.WorkID
	fields["block_status"] = string(block.Status)
	return block, nil
}

func (s *Service) ListBlocks(ctx context.Context, filter BlockListFilter) (page BlockPage, err error) {
	startedAt := time.Now().UTC()
	filter = filter.Normalize()
	fields := map[string]any{
		"work_id":  filter.WorkID,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_blocks", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return BlockPage{}, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		err = ValidationError(fmt.Sprintf("core: invalid block status filter %q", filter.Status), goerrors.FieldError{
			Field:   "status",
			Message: "must be one of pending, processing, completed, failed",
		})
		return BlockPage{}, err
	}
	page, err = s.store.ListBlocks(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return BlockPage{}, err
	}
	fields["total"] = page.Total
	return page, nil
}

func (s *Service) requireStore() error {
	if s == nil || s.store == nil {
		return FatalError("core: unit store is not configured", ErrStoreUnavailable)
	}
	return nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
