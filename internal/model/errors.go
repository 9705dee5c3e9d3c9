package model

import "errors"

// ErrNoSuchAttribute возвращается при обращении к несуществующему атрибуту.
var ErrNoSuchAttribute = errors.New("attribute does not exist")

// ErrSaveCancelled возвращается из Save, когда действие сохранения
// не вернуло объект: сервер или хук прервали его без ошибки.
var ErrSaveCancelled = errors.New("save was cancelled")

// NotificationTextError — ошибка, несущая текст серверного уведомления
// об отказе (например, при сохранении).
type NotificationTextError struct {
	Text string
}

func (e *NotificationTextError) Error() string { return e.Text }
