// Package main содержит точку входа ci-telemetry: сервиса, который принимает
// уведомления CI хоста и отправляет события, метрики и service checks
// в backend телеметрии.
//
// Команды:
//
//	ci-telemetry [serve]   приём уведомлений и периодический сброс счётчиков
//	ci-telemetry validate  проверка учётных данных backend'а
//	ci-telemetry version   версия
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Kargones/ci-telemetry/internal/config"
	"github.com/Kargones/ci-telemetry/internal/constants"
	"github.com/Kargones/ci-telemetry/internal/di"
	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
	"github.com/Kargones/ci-telemetry/internal/pkg/output"
	"github.com/Kargones/ci-telemetry/internal/pkg/urlutil"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// Коды завершения.
const (
	exitOK         = 0
	exitInvalid    = 1
	exitUsage      = 2
	exitConfig     = 5
	exitRuntimeErr = 8
)

// shutdownTimeout — сколько ждать финального сброса и остановки задач.
const shutdownTimeout = 30 * time.Second

// codeCLIFailed — код ошибки результата для ошибок без AppError.
const codeCLIFailed = "CLI.FAILED"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run выполняет команду и возвращает exit code. os.Exit вызывается только в
// main, чтобы отработали все defer.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	command := constants.ActServe
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case constants.ActVersion:
		return writeResult(stdout, output.Success(command, versionData{
			Service: constants.ServiceName,
			Version: constants.Version,
		}, time.Now()), exitOK)
	case constants.ActServe, constants.ActValidate:
	default:
		fmt.Fprintf(stderr, "неизвестная команда %q, ожидается %s, %s или %s\n",
			command, constants.ActServe, constants.ActValidate, constants.ActVersion)
		return exitUsage
	}

	bootstrap := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := config.Load(bootstrap)
	if err != nil {
		fmt.Fprintf(stderr, "Не удалось загрузить конфигурацию приложения: %v\n", err)
		return exitConfig
	}

	if command == constants.ActValidate {
		return validate(ctx, cfg, stdout)
	}
	return serve(ctx, cfg)
}

type versionData struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

type validateData struct {
	Backend string `json:"backend"`
	Target  string `json:"target"`
	Valid   bool   `json:"valid"`
}

// validate проверяет учётные данные текущего backend'а одним запросом.
func validate(ctx context.Context, cfg *config.Config, stdout io.Writer) int {
	start := time.Now()
	logger := di.ProvideLogger(cfg)
	factory, err := di.ProvideTelemetryFactory(cfg,
		di.ProvideCounterStore(),
		di.ProvideHostnameResolver(cfg, logger),
		metrics.NewNopCollector(),
		alerting.NewNopAlerter(),
		logger,
	)
	if err != nil {
		return writeResult(stdout, output.Failure(constants.ActValidate, err, codeCLIFailed, nil, start), exitConfig)
	}
	defer func() { _ = factory.Close() }()

	tc := factory.Config()
	data := validateData{Backend: tc.Backend, Target: urlutil.MaskURL(tc.APIURL)}
	if tc.Backend == telemetry.BackendAgent {
		data.Target = tc.AgentAddress()
	}
	data.Valid = factory.Current().Validate(ctx)
	if !data.Valid {
		err := fmt.Errorf("backend %s отклонил учётные данные или недоступен", tc.Backend)
		return writeResult(stdout, output.Failure(constants.ActValidate, err, codeCLIFailed, data, start), exitInvalid)
	}
	return writeResult(stdout, output.Success(constants.ActValidate, data, start), exitOK)
}

// serve запускает приложение до SIGINT/SIGTERM. SIGHUP перечитывает
// конфигурацию телеметрии без перезапуска.
func serve(ctx context.Context, cfg *config.Config) int {
	app, err := di.InitializeApp(cfg)
	if err != nil {
		slog.Error("Ошибка инициализации приложения",
			slog.String("error", err.Error()),
			slog.String(constants.MsgErrProcessing, constants.MsgAppExit),
		)
		return exitRuntimeErr
	}
	l := app.Logger
	l.Info(constants.MsgAppStart,
		slog.String("version", constants.Version),
		slog.String("backend", app.Factory.Config().Backend),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := exitOK
	if err := app.Start(); err != nil {
		l.Error("Ошибка запуска планировщика", slog.String("error", err.Error()))
		exitCode = exitRuntimeErr
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return app.Server.ListenAndServe(gctx) })
		g.Go(func() error { return reloadOnHangup(gctx, app) })
		if err := g.Wait(); err != nil {
			l.Error("Ошибка ingest API", slog.String("error", err.Error()))
			exitCode = exitRuntimeErr
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		l.Error("Ошибки при остановке", slog.String("error", err.Error()))
	}
	l.Info(constants.MsgAppExit)
	return exitCode
}

// reloadOnHangup по SIGHUP загружает конфигурацию заново и применяет секцию
// telemetry. Некорректная конфигурация отклоняется, текущая остаётся.
func reloadOnHangup(ctx context.Context, app *di.App) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			reloadTelemetry(ctx, app)
		}
	}
}

func reloadTelemetry(ctx context.Context, app *di.App) {
	l := app.Logger
	cfg, err := config.Load(nil)
	if err != nil {
		l.Warn("Новая конфигурация отклонена", slog.String("error", err.Error()))
		return
	}
	if err := app.Flusher.Reload(ctx, app.Factory, cfg.TelemetryConfig.ToTelemetry()); err != nil {
		l.Warn("Новая конфигурация телеметрии отклонена", slog.String("error", err.Error()))
		return
	}
	l.Info("Конфигурация телеметрии перечитана")
}

// writeResult выводит результат в формате CT_OUTPUT_FORMAT и возвращает code.
func writeResult(w io.Writer, res *output.Result, code int) int {
	if err := output.NewWriter(os.Getenv(constants.EnvOutputFormat)).Write(w, res); err != nil {
		return exitRuntimeErr
	}
	return code
}
