package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/auth"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/task"
	"AgentKit-Chain/pkg/logger"
)

const maxBodyBytes = 1 << 20

type invokeRequest struct {
	Name string      `json:"name"`
	Args action.Args `json:"args"`
}

type invokeResponse struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

type actionsResponse struct {
	Actions []action.Spec `json:"actions"`
}

type tasksResponse struct {
	Tasks []*task.Task    `json:"tasks"`
	Stats *task.TaskStats `json:"stats,omitempty"`
}

var errNotConfigured = xerrors.New(xerrors.CodeInitializationFailure, "服务组件未初始化")

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return xerrors.New(xerrors.CodeInvalidArgument, "请求体不能为空")
		}
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败")
	}
	return nil
}

func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Actions == nil {
		writeError(w, errNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, actionsResponse{Actions: s.deps.Actions.Describe()})
}

func (s *Server) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	if s.deps.Actions == nil {
		writeError(w, errNotConfigured)
		return
	}
	var req invokeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "name 不能为空"))
		return
	}
	if req.Args == nil {
		req.Args = action.Args{}
	}

	result, err := s.deps.Actions.Invoke(r.Context(), req.Name, req.Args)
	if err != nil {
		s.log.Warn("动作调用被拒绝", slog.String("action", req.Name), slog.Any("error", err))
		writeError(w, err)
		return
	}
	logger.Audit().Info("api_action_invoked",
		slog.String("action", req.Name),
		slog.String("subject", subjectName(r.Context())),
	)
	writeJSON(w, http.StatusOK, invokeResponse{Name: req.Name, Result: result})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		writeError(w, errNotConfigured)
		return
	}
	var req agent.TaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.chatTimeout)
	defer cancel()
	result, err := s.deps.Agent.Execute(ctx, req)
	if err != nil {
		s.log.Warn("同步对话失败", slog.Any("error", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeError(w, errNotConfigured)
		return
	}
	var req agent.TaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.deps.Tasks.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeError(w, errNotConfigured)
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.deps.Tasks.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := tasksResponse{Tasks: tasks}
	if includeStats, _ := strconv.ParseBool(r.URL.Query().Get("include_stats")); includeStats {
		stats, err := s.deps.Tasks.Stats(r.Context(), opts...)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Stats = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeError(w, errNotConfigured)
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.deps.Tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeError(w, errNotConfigured)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少任务 ID"))
		return
	}
	found, err := s.deps.Tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// parseListOptions 解析 limit、offset、status、since、until、has_result、order 与 q 参数。
func parseListOptions(r *http.Request) ([]task.ListOption, error) {
	q := r.URL.Query()
	var opts []task.ListOption

	for _, name := range []string{"limit", "offset"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "%s 必须是非负整数", name)
		}
		if name == "limit" {
			opts = append(opts, task.WithLimit(n))
		} else {
			opts = append(opts, task.WithOffset(n))
		}
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			status := task.Status(strings.ToLower(strings.TrimSpace(part)))
			if !task.IsValidStatus(status) {
				return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "未知的任务状态 %q", part)
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	for _, name := range []string{"since", "until"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		ts, err := parseTime(raw)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, name+" 格式错误")
		}
		if name == "since" {
			opts = append(opts, task.WithUpdatedSince(ts))
		} else {
			opts = append(opts, task.WithUpdatedUntil(ts))
		}
	}
	if raw := q.Get("has_result"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "has_result 必须是布尔值")
		}
		opts = append(opts, task.WithResultPresence(has))
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "order 只能是 asc 或 desc")
	}
	if query := q.Get("q"); query != "" {
		opts = append(opts, task.WithQuery(query))
	}
	return opts, nil
}

// parseTime 接受 RFC3339 或 Unix 秒。
func parseTime(raw string) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func subjectName(ctx context.Context) string {
	if subject := auth.SubjectFromContext(ctx); subject != nil {
		return subject.Name
	}
	return "anonymous"
}
