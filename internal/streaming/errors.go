package streaming

import "errors"

var (
	// ErrTransientLoad тайл не удалось загрузить. Координата возвращается
	// в Unloaded и будет запрошена повторно при следующем пересчёте.
	ErrTransientLoad = errors.New("временная ошибка загрузки тайла")
	// ErrTileAlreadyActive повторная вставка координаты в таблицу активных тайлов
	ErrTileAlreadyActive = errors.New("тайл уже активен")
	// ErrAlreadyStarted повторный вызов Manager.Start
	ErrAlreadyStarted = errors.New("менеджер уже запущен")
)
