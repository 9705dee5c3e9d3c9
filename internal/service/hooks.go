package service

import (
	"context"

	"vitrina/internal/dto"
	"vitrina/internal/model"
)

// ExecuteActionArgs — аргументы перехвата действия хуком OnAction.
// Хук может выставить Handled и Result, тогда серверный вызов не выполняется.
type ExecuteActionArgs struct {
	Action        string
	Parent        *model.PersistentObject
	Query         *model.Query
	SelectedItems []*model.QueryResultItem
	Parameters    model.Parameters

	Handled bool
	Result  *model.PersistentObject
}

// Hooks — точки расширения сервиса: конструирование модельных объектов
// плюс перехват транспортных событий.
type Hooks interface {
	model.Hooks

	// OnInitialize вызывается после загрузки GetClientData.
	OnInitialize(ctx context.Context, clientData *dto.ClientData) (*dto.ClientData, error)

	// OnSessionExpired вызывается при ответе "Session expired".
	// true — выполнить повторную аутентификацию и повторить запрос.
	OnSessionExpired(ctx context.Context) (bool, error)

	// OnAction даёт перехватить действие до серверного вызова.
	OnAction(ctx context.Context, args *ExecuteActionArgs) error

	// OnRetryAction выбирает опцию повтора, запрошенного сервером.
	// Возвращается индекс выбранной опции.
	OnRetryAction(ctx context.Context, retry *dto.Retry, retryObject *model.PersistentObject) (int, error)

	// OnClientOperation обрабатывает одну клиентскую операцию сервера.
	OnClientOperation(op dto.ClientOperation)

	// OnStreamingAction получает канал сообщений потокового действия
	// и функцию его отмены. Канал закрывается по завершении потока.
	OnStreamingAction(action string, messages <-chan string, abort func())

	// OnShowNotification показывает уведомление вне контекста объекта.
	OnShowNotification(text string, typ model.NotificationType, duration int)
}

// BaseHooks — реализация Hooks по умолчанию. Встраивается в
// пользовательские хуки, переопределяющие только нужные методы.
type BaseHooks struct {
	model.DefaultHooks
}

func (BaseHooks) OnInitialize(_ context.Context, clientData *dto.ClientData) (*dto.ClientData, error) {
	return clientData, nil
}

func (BaseHooks) OnSessionExpired(context.Context) (bool, error) { return false, nil }

func (BaseHooks) OnAction(context.Context, *ExecuteActionArgs) error { return nil }

func (BaseHooks) OnRetryAction(_ context.Context, retry *dto.Retry, _ *model.PersistentObject) (int, error) {
	return retry.CancelOption, nil
}

func (BaseHooks) OnClientOperation(dto.ClientOperation) {}

func (BaseHooks) OnStreamingAction(_ string, messages <-chan string, _ func()) {
	// Поток без потребителя дочитывается, чтобы не блокировать отправителя.
	go func() {
		for range messages {
		}
	}()
}

func (BaseHooks) OnShowNotification(string, model.NotificationType, int) {}
