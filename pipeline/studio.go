package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"BrandAmbassador-server/models"
)

const DefaultSessionID = "default"

// Collaborators 汇总所有外部协作方；Archiver 与 Drive 可为 nil
type Collaborators struct {
	Images   ImageGenerator
	Text     TextRefiner
	Prompts  PromptRefiner
	Videos   VideoGenerator
	Drive    DriveConnector
	Media    MediaStore
	Archiver Archiver
}

type Options struct {
	PollInterval   time.Duration
	RotateInterval time.Duration
}

// Studio 是顶层编排者：持有应用状态与协作方，并按需创建会话
type Studio struct {
	State *AppState

	deps Collaborators
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStudio(state *AppState, deps Collaborators, opts Options) *Studio {
	return &Studio{
		State:    state,
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Session 返回 id 对应的会话，不存在则创建
func (s *Studio) Session(id string) *Session {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := newSession(id, s.State, s.deps, s.opts)
	s.sessions[id] = sess
	return sess
}

// DeleteVideo 删除视频记录并移除本地视频文件；文件删除失败只记录日志
func (s *Studio) DeleteVideo(ctx context.Context, id string) error {
	if err := s.State.DeleteVideo(ctx, id); err != nil {
		return err
	}
	if s.deps.Media == nil {
		return nil
	}
	if err := s.deps.Media.DeleteVideo(ctx, id); err != nil {
		log.Printf("[studio] remove media for video %s: %v", id, err)
	}
	return nil
}

// Shutdown 放弃所有会话中进行中的操作并等待后台任务退出
func (s *Studio) Shutdown() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Avatar.Reset()
		sess.Video.Reset()
		sess.Wait()
	}
}

// Session 拥有一个头像流程和一个视频流程，两者各自有独立的状态机
type Session struct {
	ID       string
	Avatar   *AvatarPipeline
	Video    *VideoPipeline
	Enhancer *Enhancer

	state     *AppState
	connector DriveConnector

	mu     sync.RWMutex
	drive  DriveFetcher
	notice string
}

func newSession(id string, state *AppState, deps Collaborators, opts Options) *Session {
	sess := &Session{
		ID:        id,
		Enhancer:  NewEnhancer(deps.Text),
		state:     state,
		connector: deps.Drive,
	}
	sess.Avatar = NewAvatarPipeline(state, deps.Images, sess.Enhancer, NewMachine(opts.RotateInterval, ""))
	sess.Video = NewVideoPipeline(VideoPipelineConfig{
		State:        state,
		Refiner:      deps.Prompts,
		Videos:       deps.Videos,
		Media:        deps.Media,
		Archiver:     deps.Archiver,
		Enhancer:     sess.Enhancer,
		Machine:      NewMachine(opts.RotateInterval, "Ready to generate."),
		Drive:        sess.Drive,
		PollInterval: opts.PollInterval,
	})
	return sess
}

// Drive 返回当前会话的 Drive 连接，未登录时为 nil
func (s *Session) Drive() DriveFetcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drive
}

func (s *Session) ConnectDrive(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return validationError("access token is required")
	}
	if s.connector == nil {
		return errors.New("google drive is not configured")
	}
	fetcher, err := s.connector.Connect(ctx, accessToken)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.drive = fetcher
	s.mu.Unlock()
	log.Printf("[session %s] google drive connected", s.ID)
	return nil
}

func (s *Session) DisconnectDrive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drive = nil
}

// Notice 返回最近一次项目描述润色失败的提示
func (s *Session) Notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notice
}

// EnhanceProjectDescription 后台润色项目描述，成功后写回项目集合
func (s *Session) EnhanceProjectDescription(projectID string) error {
	project, ok := s.state.Project(projectID)
	if !ok {
		return ErrNotFound
	}
	s.mu.Lock()
	s.notice = ""
	s.mu.Unlock()
	return s.Enhancer.Go(context.Background(), FieldProjectDescription, project.Description, func(out string, err error) {
		if err != nil {
			s.mu.Lock()
			s.notice = err.Error()
			s.mu.Unlock()
			return
		}
		_, err = s.state.UpdateProject(context.Background(), projectID, func(p *models.Project) error {
			p.Description = out
			return nil
		})
		if err != nil {
			log.Printf("[session %s] write enhanced description: %v", s.ID, err)
		}
	})
}

func (s *Session) Wait() {
	s.Avatar.Wait()
	s.Video.Wait()
}
