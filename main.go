package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/seraj-app/seraj-gateway/internal/cache"
	"github.com/seraj-app/seraj-gateway/internal/config"
	"github.com/seraj-app/seraj-gateway/internal/logging"
	"github.com/seraj-app/seraj-gateway/internal/proxy"
	"github.com/seraj-app/seraj-gateway/internal/server"
	"github.com/seraj-app/seraj-gateway/internal/server/routes"
	"github.com/seraj-app/seraj-gateway/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["sites"] = config.SiteSummaries(cfg.Sites)
		fields["storage_driver"] = cfg.Global.StorageDriver
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 缓存存储 → 站点注册表与 worker 安装 → Fiber server。
	store, err := cache.NewStore(cfg.Global.StorageDriver, cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存存储失败: %v\n", err)
		return 1
	}
	defer store.Close()

	httpClient := server.NewUpstreamClient(cfg)
	registry, err := server.NewSiteRegistry(cfg, store, proxy.NewHTTPFetcher(httpClient), logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建站点注册表失败: %v\n", err)
		return 1
	}

	// install 失败的站点以透传模式继续服务，不阻塞启动。
	if err := registry.Bootstrap(context.Background()); err != nil {
		logger.WithFields(logging.BaseFields("bootstrap", opts.configPath)).
			WithError(err).Warn("部分站点安装失败")
	}

	forwarder := proxy.NewForwarder(
		proxy.NewHandler(logger),
		proxy.NewPassthrough(httpClient, logger),
		logger,
	)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["sites"] = config.SiteSummaries(cfg.Sites)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_driver"] = cfg.Global.StorageDriver
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, registry, forwarder, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("seraj-gateway", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 SERAJ_GATEWAY_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("SERAJ_GATEWAY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, registry *server.SiteRegistry, proxyHandler server.ProxyHandler, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Proxy:      proxyHandler,
		ListenPort: port,
		Diagnostics: func(app *fiber.App) {
			routes.RegisterDiagnosticsRoutes(app, registry, routes.DiagnosticsOptions{
				AdminToken: cfg.Global.AdminToken,
			})
		},
	})
	if err != nil {
		return err
	}

	if cfg.Global.AdminToken == "" {
		logger.WithField("action", "listen").Warn("AdminToken 未配置，/-/ 修改类接口已禁用")
	}
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
		"sites":  len(registry.List()),
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
