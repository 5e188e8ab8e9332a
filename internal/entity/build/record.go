package build

import "github.com/Kargones/ci-telemetry/internal/pkg/tags"

// Record — read-only представление сборки.
//
// Ссылки Previous* необязательны и не владеют объектом: реализация может
// разрешать их лениво (например, запросом к хранилищу). Отсутствующая ссылка равна nil.
type Record interface {
	Job() string
	Number() int
	StartTimeMillis() int64
	DurationMillis() int64
	Result() Result
	Hostname() string
	Tags() tags.Set

	// PreviousBuiltBuild — ближайшая предыдущая сборка с Result.Built().
	PreviousBuiltBuild() Record
	// PreviousSuccessfulBuild — ближайшая предыдущая сборка с ResultSuccess.
	PreviousSuccessfulBuild() Record
	// PreviousNotFailedBuild — ближайшая предыдущая завершённая сборка без ResultFailure.
	PreviousNotFailedBuild() Record
}

// EndTimeMillis возвращает момент окончания сборки.
func EndTimeMillis(r Record) int64 {
	return r.StartTimeMillis() + r.DurationMillis()
}

// Snapshot — Record с явными ссылками. Используется ingest API и тестами.
type Snapshot struct {
	JobName     string
	BuildNumber int
	StartedAt   int64 // unix ms
	DurationMs  int64
	Status      Result
	Host        string
	TagSet      tags.Set

	PrevBuilt      *Snapshot
	PrevSuccessful *Snapshot
	PrevNotFailed  *Snapshot
}

var _ Record = (*Snapshot)(nil)

func (s *Snapshot) Job() string            { return s.JobName }
func (s *Snapshot) Number() int            { return s.BuildNumber }
func (s *Snapshot) StartTimeMillis() int64 { return s.StartedAt }
func (s *Snapshot) DurationMillis() int64  { return s.DurationMs }
func (s *Snapshot) Result() Result         { return s.Status }
func (s *Snapshot) Hostname() string       { return s.Host }
func (s *Snapshot) Tags() tags.Set         { return s.TagSet }

// PreviousBuiltBuild возвращает nil-интерфейс при отсутствии ссылки.
func (s *Snapshot) PreviousBuiltBuild() Record { return orNil(s.PrevBuilt) }

// PreviousSuccessfulBuild возвращает nil-интерфейс при отсутствии ссылки.
func (s *Snapshot) PreviousSuccessfulBuild() Record { return orNil(s.PrevSuccessful) }

// PreviousNotFailedBuild возвращает nil-интерфейс при отсутствии ссылки.
func (s *Snapshot) PreviousNotFailedBuild() Record { return orNil(s.PrevNotFailed) }

func orNil(s *Snapshot) Record {
	if s == nil {
		return nil
	}
	return s
}

// Chain связывает снимки одного job в хронологическом порядке (от старых к новым),
// заполняя PrevBuilt/PrevSuccessful/PrevNotFailed по правилам Result.
// Возвращает последний снимок или nil для пустого списка.
func Chain(snapshots ...*Snapshot) *Snapshot {
	var lastBuilt, lastSuccess, lastNotFailed *Snapshot
	for _, s := range snapshots {
		s.PrevBuilt = lastBuilt
		s.PrevSuccessful = lastSuccess
		s.PrevNotFailed = lastNotFailed
		if s.Status.Built() {
			lastBuilt = s
		}
		if s.Status == ResultSuccess {
			lastSuccess = s
		}
		if s.Status.NotFailed() {
			lastNotFailed = s
		}
	}
	if len(snapshots) == 0 {
		return nil
	}
	return snapshots[len(snapshots)-1]
}
