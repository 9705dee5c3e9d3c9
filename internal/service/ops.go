package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vitrina/internal/dto"
	"vitrina/internal/model"
)

// GetQueryOptions — необязательные параметры загрузки запроса.
type GetQueryOptions struct {
	Parent     *model.PersistentObject
	AsLookup   bool
	TextSearch string
}

// GetQuery загружает запрос по его id.
func (s *Service) GetQuery(ctx context.Context, id string, opts ...GetQueryOptions) (*model.Query, error) {
	var o GetQueryOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	data := s.createData("getQuery")
	data["id"] = id

	if o.Parent != nil {
		data["parent"] = o.Parent.ToServiceObject()
	}
	if o.TextSearch != "" {
		data["textSearch"] = o.TextSearch
	}

	result, err := s.postJSON(ctx, "GetQuery", data)
	if err != nil {
		return nil, err
	}
	if result.Query == nil {
		return nil, errors.New("empty query result")
	}

	return s.hooks.OnConstructQuery(s, result.Query, o.Parent, 0), nil
}

// GetPersistentObject загружает объект по id типа и id экземпляра.
// Реализация model.Service.
func (s *Service) GetPersistentObject(ctx context.Context, parent *model.PersistentObject, id, objectID string, isNew bool) (*model.PersistentObject, error) {
	data := s.createData("getPersistentObject")
	data["persistentObjectTypeId"] = id
	data["objectId"] = objectID
	if isNew {
		data["isNew"] = true
	}
	if parent != nil {
		data["parent"] = parent.ToServiceObject()
	}

	result, err := s.postJSON(ctx, "GetPersistentObject", data)
	if err != nil {
		return nil, err
	}

	var d dto.PersistentObject
	if err := dto.Unmarshal(result.Result, &d); err != nil {
		return nil, err
	}

	if d.Notification != "" {
		// Кратковременные уведомления показываются вне объекта
		// и в него не переносятся.
		if d.NotificationDuration > 0 {
			s.hooks.OnShowNotification(d.Notification, model.NotificationType(d.NotificationType), d.NotificationDuration)
			d.Notification = ""
			d.NotificationType = ""
			d.NotificationDuration = 0
		} else if d.NotificationType == string(model.NotificationError) {
			return nil, &ServiceError{Exception: d.Notification}
		}
	}

	return s.hooks.OnConstructPersistentObject(s, &d), nil
}

// ExecuteQuery выполняет поиск. Если континуация не исчерпала
// запрошенную страницу (top либо pageSize), подгружает следующие
// куски, пока страница не заполнится. Реализация model.Service.
func (s *Service) ExecuteQuery(ctx context.Context, parent *model.PersistentObject, query *model.Query, asLookup bool) (*dto.QueryResult, error) {
	data := s.createData("executeQuery")
	data["query"] = query.ToServiceObject()
	if parent != nil {
		data["parent"] = parent.ToServiceObject()
	}
	if asLookup {
		data["asLookup"] = true
	}

	result, err := s.postJSON(ctx, "ExecuteQuery", data)
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			query.SetNotification(se.Exception, model.NotificationError, 0)
		}
		return nil, err
	}

	var page dto.QueryResult
	if err := dto.Unmarshal(result.Result, &page); err != nil {
		return nil, err
	}

	wanted := query.Top()
	if wanted <= 0 {
		wanted = query.PageSize()
	}

	for page.Continuation != "" && wanted > 0 && len(page.Items) < wanted {
		next := query.ToServiceObject()
		next.Continuation = page.Continuation
		next.Top = wanted - len(page.Items)
		data["query"] = next

		result, err := s.postJSON(ctx, "ExecuteQuery", data)
		if err != nil {
			return nil, err
		}

		var chunk dto.QueryResult
		if err := dto.Unmarshal(result.Result, &chunk); err != nil {
			return nil, err
		}

		page.Items = append(page.Items, chunk.Items...)
		page.Continuation = chunk.Continuation
	}

	if page.Continuation == "" && page.TotalItems < 0 {
		// Сервер не знает итог при континуациях; страница исчерпана,
		// значит итог известен точно.
		page.TotalItems = len(query.Items()) + len(page.Items)
	}

	return &page, nil
}

// ExecuteAction выполняет серверное действие. Объектные действия
// (PersistentObject.* либо без запроса) замораживают родителя на время
// вызова, кроме PersistentObject.Refresh. Уведомление действующего
// объекта (родителя либо запроса) сбрасывается при входе; ошибка
// действия записывается в него же. Реализация model.Service.
func (s *Service) ExecuteAction(ctx context.Context, action string, parent *model.PersistentObject, query *model.Query, selectedItems []*model.QueryResultItem, parameters model.Parameters) (*model.PersistentObject, error) {
	isObjectAction := strings.HasPrefix(action, "PersistentObject.") || query == nil

	var target interface {
		SetNotification(text string, typ model.NotificationType, duration int)
	}
	if isObjectAction {
		if parent != nil {
			target = parent
		}
	} else {
		target = query
	}
	if target != nil {
		target.SetNotification("", model.NotificationNone, 0)
	}

	fail := func(err error) (*model.PersistentObject, error) {
		if target != nil {
			target.SetNotification(err.Error(), model.NotificationError, 0)
		}
		return nil, err
	}

	args := &ExecuteActionArgs{
		Action:        action,
		Parent:        parent,
		Query:         query,
		SelectedItems: selectedItems,
		Parameters:    parameters,
	}
	if err := s.hooks.OnAction(ctx, args); err != nil {
		return fail(err)
	}
	if args.Handled {
		return args.Result, nil
	}

	if isObjectAction && parent != nil && action != "PersistentObject.Refresh" {
		unfreeze := parent.Freeze()
		defer unfreeze()
	}

	data := s.createData("executeAction")
	data["action"] = action
	if parent != nil {
		data["parent"] = parent.ToServiceObject()
	}
	if query != nil {
		data["query"] = query.ToServiceObject()
	}
	// При «выбрано всё» строки не перечисляются: сервер действует
	// по всему результату запроса из его сериализации.
	if len(selectedItems) > 0 && (query == nil || !query.AllSelected()) {
		items := make([]*dto.QueryResultItem, 0, len(selectedItems))
		for _, it := range selectedItems {
			items = append(items, it.ToServiceObject())
		}
		data["selectedItems"] = items
	}
	if len(args.Parameters) > 0 {
		data["parameters"] = args.Parameters
	}

	files := collectUploads(parent)

	result, err := s.post(ctx, "ExecuteAction", data, files)
	if err != nil {
		return fail(err)
	}

	// Сервер может запросить уточнение: действие повторяется
	// с выбранной опцией, пока уточнения не кончатся.
	for result.Retry != nil {
		retry := result.Retry

		var retryObject *model.PersistentObject
		if retry.PersistentObject != nil {
			retryObject = s.hooks.OnConstructPersistentObject(s, retry.PersistentObject)
		}

		option, err := s.hooks.OnRetryAction(ctx, retry, retryObject)
		if err != nil {
			return fail(err)
		}
		if option == retry.CancelOption {
			return nil, nil
		}

		params := model.Parameters{"RetryActionOption": option}
		for k, v := range args.Parameters {
			params[k] = v
		}
		data["parameters"] = params
		if retryObject != nil {
			data["retryPersistentObject"] = retryObject.ToServiceObject()
		}

		result, err = s.post(ctx, "ExecuteAction", data, files)
		if err != nil {
			return fail(err)
		}
	}

	if len(result.Result) == 0 {
		return nil, nil
	}

	var d dto.PersistentObject
	if err := dto.Unmarshal(result.Result, &d); err != nil {
		return fail(err)
	}
	return s.hooks.OnConstructPersistentObject(s, &d), nil
}

// collectUploads собирает отложенные файлы изменённых атрибутов,
// включая атрибуты detail-строк (имя поля: атрибут.индекс.атрибут).
func collectUploads(parent *model.PersistentObject) []attachment {
	if parent == nil {
		return nil
	}

	var files []attachment
	for _, attr := range parent.Attributes() {
		base := attr.Base()
		if u := base.Upload(); u != nil && base.IsValueChanged() {
			files = append(files, attachment{field: base.Name(), filename: u.FileName, content: u.Content})
			continue
		}

		detail, ok := attr.(*model.PersistentObjectAttributeAsDetail)
		if !ok {
			continue
		}
		for idx, obj := range detail.Objects() {
			for _, child := range obj.Attributes() {
				cb := child.Base()
				if u := cb.Upload(); u != nil && cb.IsValueChanged() {
					field := fmt.Sprintf("%s.%d.%s", detail.Base().Name(), idx, cb.Name())
					files = append(files, attachment{field: field, filename: u.FileName, content: u.Content})
				}
			}
		}
	}
	return files
}

// GetStream скачивает файл, порождаемый действием (отчёт, вложение).
// Имя берётся из Content-Disposition ответа.
func (s *Service) GetStream(ctx context.Context, obj *model.PersistentObject, action string, parent *model.PersistentObject, query *model.Query, selectedItems []*model.QueryResultItem, parameters model.Parameters) (string, []byte, error) {
	data := s.createData("getStream")
	data["action"] = action
	if obj != nil {
		data["id"] = obj.ObjectID()
	}
	if parent != nil {
		data["parent"] = parent.ToServiceObject()
	}
	if query != nil {
		data["query"] = query.ToServiceObject()
	}
	if len(selectedItems) > 0 {
		items := make([]*dto.QueryResultItem, 0, len(selectedItems))
		for _, it := range selectedItems {
			items = append(items, it.ToServiceObject())
		}
		data["selectedItems"] = items
	}
	if len(parameters) > 0 {
		data["parameters"] = parameters
	}

	payload, err := dto.Marshal(data)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("data", string(payload)); err != nil {
		return "", nil, err
	}
	if err := w.Close(); err != nil {
		return "", nil, err
	}

	resp, err := s.fetch(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.createURI("GetStream"), bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%s", resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	name := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			name = params["filename"]
		}
	}

	return name, content, nil
}

// ReportOptions — параметры выборки отчёта.
type ReportOptions struct {
	Filter   string
	OrderBy  string
	Top      int
	Skip     int
	HideIDs  bool
	HideType bool
}

// GetReport выгружает строки отчёта по его токену.
func (s *Service) GetReport(ctx context.Context, token string, opts ...ReportOptions) ([]map[string]any, error) {
	var o ReportOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	uri := s.createURI("GetReport/" + token + "?format=json&$filter=" + url.QueryEscape(o.Filter))
	if o.OrderBy != "" {
		uri += "&$orderBy=" + url.QueryEscape(o.OrderBy)
	}
	if o.Top > 0 {
		uri += "&$top=" + strconv.Itoa(o.Top)
	}
	if o.Skip > 0 {
		uri += "&$skip=" + strconv.Itoa(o.Skip)
	}
	if o.HideIDs {
		uri += "&hideIds=true"
	}
	if o.HideType {
		uri += "&hideType=true"
	}

	var out struct {
		D []map[string]any `json:"d"`
	}
	if err := s.getJSON(ctx, uri, nil, &out); err != nil {
		return nil, err
	}
	return out.D, nil
}

// InstantSearchResult — одна строка мгновенного поиска.
type InstantSearchResult struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	ObjectID   string `json:"objectId"`
	Breadcrumb string `json:"breadcrumb"`
}

// GetInstantSearch выполняет мгновенный поиск по всему приложению.
func (s *Service) GetInstantSearch(ctx context.Context, search string) ([]*InstantSearchResult, error) {
	uri := s.createURI("Instant?q=" + url.QueryEscape(search))

	headers := map[string]string{
		"Authorization": "Bearer " + url.QueryEscape(s.UserName()) + "|" + s.AuthToken(),
	}

	var out struct {
		InstantSearches []*InstantSearchResult `json:"instantSearches"`
	}
	if err := s.getJSON(ctx, uri, headers, &out); err != nil {
		return nil, err
	}
	return out.InstantSearches, nil
}
