package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"vitrina/internal/dto"
)

// postStream выполняет потоковое действие: ответ приходит как
// text/event-stream, сообщения передаются хуку OnStreamingAction.
// Вызов разрешается первым сообщением потока (либо его концом);
// дальнейшие сообщения читатель досылает в фоне, пока сервер не
// закроет поток или не случится abort.
func (s *Service) postStream(ctx context.Context, method, actionName string, data map[string]any, headers map[string]string) error {
	body, err := dto.Marshal(data)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, s.createURI(method), bytes.NewReader(body))
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%s", resp.Status)
	}

	messages := make(chan string)
	s.hooks.OnStreamingAction(actionName, messages, cancel)

	first := make(chan error, 1)
	settle := func(err error) {
		select {
		case first <- err:
		default:
		}
	}

	go func() {
		defer cancel()
		defer resp.Body.Close()
		defer close(messages)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		// Одно SSE-событие может состоять из нескольких строк data:.
		var event []string
		flush := func() bool {
			if len(event) == 0 {
				return true
			}
			msg := strings.Join(event, "\n")
			event = event[:0]
			// Пустые сообщения — keep-alive, наружу не отдаются.
			if strings.TrimSpace(msg) == "" {
				return true
			}
			select {
			case messages <- msg:
				settle(nil)
				return true
			case <-streamCtx.Done():
				return false
			}
		}

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if !flush() {
					settle(nil)
					return
				}
				continue
			}
			if rest, ok := strings.CutPrefix(line, "data:"); ok {
				event = append(event, strings.TrimPrefix(rest, " "))
			}
		}
		flush()

		if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
			settle(err)
			return
		}
		settle(nil)
	}()

	return <-first
}
