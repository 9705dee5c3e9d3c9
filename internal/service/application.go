package service

import (
	"strings"

	"vitrina/internal/dto"
	"vitrina/internal/model"
)

// Language — один язык приложения с каталогом переводов.
type Language struct {
	Culture   string
	Name      string
	IsDefault bool
	Messages  map[string]string
}

func newLanguage(culture string, d *dto.LanguageData) *Language {
	messages := make(map[string]string, len(d.Messages))
	for k, v := range d.Messages {
		messages[k] = v
	}
	return &Language{
		Culture:   culture,
		Name:      d.Name,
		IsDefault: d.IsDefault,
		Messages:  messages,
	}
}

// Application — объект приложения, полученный при входе: сессия,
// права и служебные запросы (каталог действий, клиентские сообщения).
type Application struct {
	*model.PersistentObject

	userName         string
	friendlyUserName string
	canProfile       bool
	hasSensitive     bool

	session *model.PersistentObject
}

func newApplication(svc *Service, d *dto.PersistentObject) *Application {
	po := model.NewPersistentObject(svc, d)
	app := &Application{PersistentObject: po}

	app.userName, _ = po.GetAttributeValue("UserName").(string)
	app.friendlyUserName, _ = po.GetAttributeValue("FriendlyUserName").(string)
	if app.friendlyUserName == "" {
		app.friendlyUserName = app.userName
	}
	app.canProfile, _ = po.GetAttributeValue("CanProfile").(bool)
	app.hasSensitive, _ = po.GetAttributeValue("HasSensitive").(bool)

	return app
}

func (a *Application) UserName() string         { return a.userName }
func (a *Application) FriendlyUserName() string { return a.friendlyUserName }
func (a *Application) CanProfile() bool         { return a.canProfile }
func (a *Application) HasSensitive() bool       { return a.hasSensitive }

// Session — объект сессии, обновляемый каждым ответом сервера.
func (a *Application) Session() *model.PersistentObject { return a.session }

func (a *Application) updateSession(svc *Service, d *dto.PersistentObject) {
	if d == nil {
		a.session = nil
		return
	}
	if a.session == nil || a.session.ID() != d.ID {
		a.session = model.NewPersistentObject(svc, d)
		return
	}
	a.session.RefreshFromResult(d, true)
}

// ActionDefinition — описание действия из каталога приложения.
type ActionDefinition struct {
	Name          string
	DisplayName   string
	IsPinned      bool
	IsStreaming   bool
	ShowedOn      []string
	SelectionRule string
	Offset        int
}

func newActionDefinition(item *model.QueryResultItem) *ActionDefinition {
	def := &ActionDefinition{}
	def.Name, _ = item.GetValue("Name").(string)
	def.DisplayName, _ = item.GetValue("DisplayName").(string)
	def.IsPinned, _ = item.GetValue("IsPinned").(bool)
	def.IsStreaming, _ = item.GetValue("IsStreaming").(bool)
	def.SelectionRule, _ = item.GetValue("SelectionRule").(string)
	if offset, ok := item.GetValue("Offset").(int64); ok {
		def.Offset = int(offset)
	}
	if showedOn, ok := item.GetValue("ShowedOn").(string); ok && showedOn != "" {
		for _, s := range strings.Split(showedOn, ",") {
			def.ShowedOn = append(def.ShowedOn, strings.TrimSpace(s))
		}
	}
	return def
}
