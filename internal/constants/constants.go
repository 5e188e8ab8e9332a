// Package constants содержит константы, используемые в проекте ci-telemetry.
// Константы сгруппированы по их функциональному назначению.
package constants

// Version — версия приложения. Подставляется при сборке:
//
//	go build -ldflags "-X github.com/Kargones/ci-telemetry/internal/constants.Version=1.2.3"
var Version = "dev"

// ServiceName — имя сервиса в логах, трейсах и метриках.
const ServiceName = "ci-telemetry"

// Переменные окружения верхнего уровня. Остальные CT_* описаны тегами
// структур пакета config.
const (
	// EnvPrefix — общий префикс переменных окружения.
	EnvPrefix = "CT_"
	// EnvConfigFile — путь к YAML файлу конфигурации.
	EnvConfigFile = EnvPrefix + "CONFIG_FILE"
	// EnvOutputFormat — формат вывода результата команд: "text" или "json".
	EnvOutputFormat = EnvPrefix + "OUTPUT_FORMAT"
)

// Константы сообщений приложения
const (
	// MsgAppStart - сообщение о запуске
	MsgAppStart = "Запуск ci-telemetry"
	// MsgAppExit - сообщение о завершении работы программы
	MsgAppExit = "Завершение работы программы"
	// MsgErrProcessing - сообщение об обработке ошибки
	MsgErrProcessing = "Обработка ошибки"
)

// Константы команд
const (
	// ActServe - приём уведомлений и отправка телеметрии (по умолчанию)
	ActServe = "serve"
	// ActValidate - проверка учётных данных backend'а
	ActValidate = "validate"
	// ActVersion - вывод версии
	ActVersion = "version"
)
