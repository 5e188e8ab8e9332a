package buildstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	// blank import для драйвера SQL Server
	_ "github.com/denisenkom/go-mssqldb"

	"github.com/Kargones/ci-telemetry/internal/entity/build"
	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// buildsTable — таблица истории сборок.
//
// SECURITY NOTE: значение подставляется в текст запроса через fmt.Sprintf.
// Это безопасно только пока оно compile-time константа.
const buildsTable = "[dbo].[ci_builds]"

// filterClauses — условия WHERE для Filter. Только константы.
var filterClauses = map[Filter]string{
	FilterBuilt:      "result NOT IN ('', 'NOT_BUILT')",
	FilterSuccessful: "result = 'SUCCESS'",
	FilterNotFailed:  "result NOT IN ('', 'FAILURE')",
}

var _ Store = (*MSSQLStore)(nil)

// MSSQLOptions содержит параметры подключения к SQL Server.
type MSSQLOptions struct {
	// Server — адрес сервера
	Server string
	// Port — порт сервера (по умолчанию 1433)
	Port int
	// User — имя пользователя
	User string
	// Password — пароль пользователя
	Password string
	// Database — база данных с таблицей ci_builds
	Database string
	// Timeout — таймаут подключения и одного запроса
	Timeout time.Duration
	// Encrypt — TLS шифрование. Если не задано явно через WithEncrypt, включено.
	Encrypt bool

	encryptSet bool
}

// WithEncrypt возвращает копию опций с явно заданным режимом шифрования.
func (o MSSQLOptions) WithEncrypt(encrypt bool) MSSQLOptions {
	o.Encrypt = encrypt
	o.encryptSet = true
	return o
}

// MSSQLStore — Store на Microsoft SQL Server.
type MSSQLStore struct {
	db   *sql.DB
	opts MSSQLOptions
}

// NewMSSQLStore создаёт MSSQLStore. Подключение выполняется в Connect.
func NewMSSQLStore(opts MSSQLOptions) (*MSSQLStore, error) {
	if opts.Server == "" {
		return nil, ErrServerMissing
	}
	if opts.Port == 0 {
		opts.Port = 1433
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, ErrInvalidPort
	}
	if opts.Database == "" {
		opts.Database = "ci_telemetry"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if !opts.encryptSet {
		opts.Encrypt = true
	}
	return &MSSQLStore{opts: opts}, nil
}

// newMSSQLStoreWithDB используется тестами с sqlmock.
func newMSSQLStoreWithDB(db *sql.DB, opts MSSQLOptions) *MSSQLStore {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &MSSQLStore{db: db, opts: opts}
}

// connString формирует DSN в URL-форме sqlserver://. Учётные данные и
// параметры кодируются net/url, драйвер декодирует их обратно.
// Именованный экземпляр (server\instance) передаётся путём URL.
func (s *MSSQLStore) connString() string {
	encryptMode := "true"
	if !s.opts.Encrypt {
		encryptMode = "disable"
	}

	host, instance, _ := strings.Cut(s.opts.Server, `\`)
	q := url.Values{}
	q.Set("database", s.opts.Database)
	q.Set("encrypt", encryptMode)
	q.Set("connection timeout", strconv.Itoa(int(s.opts.Timeout.Seconds())))

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(s.opts.User, s.opts.Password),
		Host:     net.JoinHostPort(host, strconv.Itoa(s.opts.Port)),
		RawQuery: q.Encode(),
	}
	if instance != "" {
		u.Path = "/" + instance
	}
	return u.String()
}

// Connect устанавливает соединение и проверяет его ping'ом.
func (s *MSSQLStore) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlserver", s.connString())
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrStoreConnect, "sql.Open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		if ctx.Err() != nil {
			return apperrors.NewAppError(apperrors.ErrStoreConnect, "context cancelled during ping", ctx.Err())
		}
		return apperrors.NewAppError(apperrors.ErrStoreConnect, "ping failed", err)
	}
	s.db = db
	return nil
}

// Ping проверяет доступность сервера.
func (s *MSSQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewAppError(apperrors.ErrStoreConnect, "ping failed", err)
	}
	return nil
}

// EnsureSchema создаёт таблицу истории, если её нет.
func (s *MSSQLStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}
	query := fmt.Sprintf(`
	IF OBJECT_ID(N'%[1]s', N'U') IS NULL
	CREATE TABLE %[1]s (
		job         NVARCHAR(400) NOT NULL,
		number      INT           NOT NULL,
		started_at  BIGINT        NOT NULL,
		duration_ms BIGINT        NOT NULL,
		result      NVARCHAR(16)  NOT NULL,
		hostname    NVARCHAR(255) NOT NULL,
		tags        NVARCHAR(MAX) NOT NULL,
		CONSTRAINT PK_ci_builds PRIMARY KEY (job, number)
	);
	`, buildsTable)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return apperrors.NewAppError(apperrors.ErrStoreQuery, "create table", err)
	}
	return nil
}

// Save сохраняет сборку через MERGE по (job, number).
func (s *MSSQLStore) Save(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if s.db == nil {
		return ErrNotConnected
	}

	query := fmt.Sprintf(`
	MERGE INTO %s AS t
	USING (SELECT @p1 AS job, @p2 AS number) AS s
	ON t.job = s.job AND t.number = s.number
	WHEN MATCHED THEN
		UPDATE SET started_at = @p3, duration_ms = @p4, result = @p5, hostname = @p6, tags = @p7
	WHEN NOT MATCHED THEN
		INSERT (job, number, started_at, duration_ms, result, hostname, tags)
		VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7);
	`, buildsTable)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, query,
		e.Job,
		e.Number,
		e.StartedAt,
		e.DurationMs,
		string(e.Result),
		e.Hostname,
		e.Tags.Key(),
	)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrStoreQuery, "save build", err)
	}
	return nil
}

// Previous выбирает ближайшую подходящую сборку с меньшим номером.
func (s *MSSQLStore) Previous(ctx context.Context, job string, before int, filter Filter) (Entry, bool, error) {
	if s.db == nil {
		return Entry{}, false, ErrNotConnected
	}
	clause, ok := filterClauses[filter]
	if !ok {
		return Entry{}, false, fmt.Errorf("buildstore: unknown filter %d", filter)
	}

	query := fmt.Sprintf(`
	SELECT TOP 1 job, number, started_at, duration_ms, result, hostname, tags
	FROM %s
	WHERE job = @p1 AND number < @p2 AND %s
	ORDER BY number DESC;
	`, buildsTable, clause)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var (
		e       Entry
		result  string
		tagList string
	)
	err := s.db.QueryRowContext(ctx, query, job, before).Scan(
		&e.Job, &e.Number, &e.StartedAt, &e.DurationMs, &result, &e.Hostname, &tagList,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, apperrors.NewAppError(apperrors.ErrStoreQuery, "select previous build", err)
	}
	e.Result = build.Result(result)
	if tagList != "" {
		e.Tags = tags.New(strings.Split(tagList, ",")...)
	}
	return e, true, nil
}

// Close закрывает соединение.
func (s *MSSQLStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
