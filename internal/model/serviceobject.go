package model

import (
	"context"
	"strings"
	"sync"
)

// PropertyChange — уведомление об изменении свойства модельного объекта.
type PropertyChange struct {
	Name string
	Old  any
	New  any
}

// ServiceObject — общий базовый объект модели: хранит ссылку на сервис
// и рассылает уведомления об изменениях подписчикам.
type ServiceObject struct {
	svc Service

	subMu  sync.Mutex
	subs   map[int]func(PropertyChange)
	subSeq int
}

func newServiceObject(svc Service) ServiceObject {
	return ServiceObject{svc: svc}
}

// Service возвращает сервис, породивший объект (nil в автономных тестах).
func (o *ServiceObject) Service() Service { return o.svc }

// Subscribe регистрирует подписчика на изменения свойств.
// Возвращённая функция снимает подписку.
func (o *ServiceObject) Subscribe(fn func(PropertyChange)) (cancel func()) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]func(PropertyChange))
	}
	id := o.subSeq
	o.subSeq++
	o.subs[id] = fn
	return func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		delete(o.subs, id)
	}
}

func (o *ServiceObject) notifyPropertyChanged(name string, newValue, oldValue any) {
	o.subMu.Lock()
	fns := make([]func(PropertyChange), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subMu.Unlock()
	for _, fn := range fns {
		fn(PropertyChange{Name: name, Old: oldValue, New: newValue})
	}
}

// NotificationType — вид уведомления, полученного от сервера.
type NotificationType string

const (
	NotificationNone    NotificationType = ""
	NotificationError   NotificationType = "Error"
	NotificationNotice  NotificationType = "Notice"
	NotificationOK      NotificationType = "OK"
	NotificationWarning NotificationType = "Warning"
)

// ServiceObjectWithActions добавляет к базовому объекту список действий,
// уведомление и последовательную очередь работ.
type ServiceObjectWithActions struct {
	ServiceObject

	queue WorkQueue

	busyMu sync.Mutex
	isBusy bool

	notification         string
	notificationType     NotificationType
	notificationDuration int

	actionNames []string
}

func newServiceObjectWithActions(svc Service, actionNames []string) ServiceObjectWithActions {
	return ServiceObjectWithActions{
		ServiceObject: newServiceObject(svc),
		actionNames:   append([]string(nil), actionNames...),
	}
}

// Actions — имена действий, доступных для объекта.
func (o *ServiceObjectWithActions) Actions() []string { return o.actionNames }

// HasAction сообщает, доступно ли действие с указанным именем.
func (o *ServiceObjectWithActions) HasAction(name string) bool {
	for _, a := range o.actionNames {
		if a == name {
			return true
		}
	}
	return false
}

func (o *ServiceObjectWithActions) setActions(names []string) {
	old := o.actionNames
	o.actionNames = append([]string(nil), names...)
	o.notifyPropertyChanged("actions", o.actionNames, old)
}

// IsBusy — выполняется ли сейчас работа из очереди объекта.
func (o *ServiceObjectWithActions) IsBusy() bool {
	o.busyMu.Lock()
	defer o.busyMu.Unlock()
	return o.isBusy
}

func (o *ServiceObjectWithActions) setIsBusy(v bool) {
	o.busyMu.Lock()
	old := o.isBusy
	o.isBusy = v
	o.busyMu.Unlock()
	if old != v {
		o.notifyPropertyChanged("isBusy", v, old)
	}
}

// QueueWork ставит fn в последовательную очередь объекта: работы
// выполняются строго одна за другой в порядке постановки.
func (o *ServiceObjectWithActions) QueueWork(ctx context.Context, fn func(context.Context) error) error {
	return o.queue.Run(ctx, func(ctx context.Context) error {
		o.setIsBusy(true)
		defer o.setIsBusy(false)
		return fn(ctx)
	})
}

// Notification возвращает текущее уведомление объекта.
func (o *ServiceObjectWithActions) Notification() (string, NotificationType, int) {
	return o.notification, o.notificationType, o.notificationDuration
}

// NotificationText — только текст уведомления.
func (o *ServiceObjectWithActions) NotificationText() string { return o.notification }

// NotificationKind — только тип уведомления.
func (o *ServiceObjectWithActions) NotificationKind() NotificationType { return o.notificationType }

// SetNotification устанавливает уведомление. Пустой текст сбрасывает его.
func (o *ServiceObjectWithActions) SetNotification(text string, typ NotificationType, duration int) {
	if strings.TrimSpace(text) == "" {
		text = ""
		typ = NotificationNone
		duration = 0
	} else if typ == NotificationNone {
		typ = NotificationError
	}

	if o.notification == text && o.notificationType == typ && o.notificationDuration == duration {
		return
	}

	oldText, oldType, oldDuration := o.notification, o.notificationType, o.notificationDuration
	o.notification = text
	o.notificationType = typ
	o.notificationDuration = duration

	if oldText != text {
		o.notifyPropertyChanged("notification", text, oldText)
	}
	if oldType != typ {
		o.notifyPropertyChanged("notificationType", typ, oldType)
	}
	if oldDuration != duration {
		o.notifyPropertyChanged("notificationDuration", duration, oldDuration)
	}
}

// ClearNotification сбрасывает уведомление объекта.
func (o *ServiceObjectWithActions) ClearNotification() {
	o.SetNotification("", NotificationNone, 0)
}

// WorkQueue — последовательная очередь: каждая работа ждёт завершения
// предыдущей через цепочку каналов. Отмена контекста прерывает саму
// работу, но не нарушает порядок цепочки.
type WorkQueue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Run ставит fn в хвост цепочки и блокируется до её завершения.
func (q *WorkQueue) Run(ctx context.Context, fn func(context.Context) error) error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	defer close(done)
	if prev != nil {
		<-prev
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
