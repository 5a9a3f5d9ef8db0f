package service

import (
	"sync"
	"tokengate_backend/internal/model"
	"tokengate_backend/internal/repository"
	"tokengate_backend/pkg/logger"

	"go.uber.org/zap"
)

// CourseService 课程目录。目录运行时只读，按 slug 整课缓存在进程内。
type CourseService struct {
	CourseRepo *repository.CourseRepository

	mu    sync.RWMutex
	cache map[string]*model.Course
}

func NewCourseService(courseRepo *repository.CourseRepository) *CourseService {
	return &CourseService{
		CourseRepo: courseRepo,
		cache:      make(map[string]*model.Course),
	}
}

func (s *CourseService) GetCourse(slug string) (*model.Course, error) {
	s.mu.RLock()
	course, ok := s.cache[slug]
	s.mu.RUnlock()
	if ok {
		return course, nil
	}

	course, err := s.CourseRepo.FindBySlug(slug)
	if err != nil {
		return nil, err
	}

	validateCourse(course)

	s.mu.Lock()
	s.cache[slug] = course
	s.mu.Unlock()
	return course, nil
}

func (s *CourseService) ListCourses() ([]model.Course, error) {
	return s.CourseRepo.ListPublished()
}

// validateCourse 校验内容不变量：每题至少 2 个选项且正确选项必须在其中。
// 违例只告警不拒载，内容问题由内容侧修复。
func validateCourse(course *model.Course) {
	for _, lesson := range course.Lessons {
		for _, question := range lesson.Questions {
			if len(question.Options) < 2 {
				logger.Log.Warn("quiz question has fewer than 2 options",
					zap.String("course", course.Slug),
					zap.String("lesson", lesson.Slug),
					zap.Uint("questionId", question.ID))
			}
			found := false
			for _, option := range question.Options {
				if option.ID == question.CorrectOptionID {
					found = true
					break
				}
			}
			if !found {
				logger.Log.Warn("quiz question correct option missing from options",
					zap.String("course", course.Slug),
					zap.String("lesson", lesson.Slug),
					zap.Uint("questionId", question.ID))
			}
		}
	}
}
