package main

import (
	"fmt"

	"imagegen-studio/common"
	"imagegen-studio/internal/genai"
	"imagegen-studio/internal/history"
	"imagegen-studio/internal/mirror"
	"imagegen-studio/internal/studio"
	"imagegen-studio/internal/style"
)

// app 组装好的核心组件
type app struct {
	config  *common.Config
	catalog *style.Catalog
	client  *genai.Client
	store   *history.Store
	runner  *studio.Runner
}

// newApp 加载配置并创建所有组件；配置错误直接返回，由调用方终止进程
func newApp() (*app, error) {
	config, err := common.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	catalog := style.NewCatalog(config.CustomStyleFile)

	client, err := genai.NewClientFromConfig(config, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	var historyMirror history.Mirror
	s3Mirror, err := mirror.NewFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create history mirror: %w", err)
	}
	if s3Mirror != nil {
		historyMirror = s3Mirror
	} else {
		common.Debugf("History mirror disabled")
	}

	store, err := history.NewStoreFromConfig(config, historyMirror)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	common.Infof("Studio ready: %d history entries in %s", store.Len(), store.Dir())

	return &app{
		config:  config,
		catalog: catalog,
		client:  client,
		store:   store,
		runner:  studio.NewRunner(client, store),
	}, nil
}
