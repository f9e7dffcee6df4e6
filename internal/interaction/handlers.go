package interaction

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/pianoholic0120/wp1141-sub002/internal/apperr"
	"github.com/pianoholic0120/wp1141-sub002/internal/auth"
	"github.com/pianoholic0120/wp1141-sub002/internal/post"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

var validate = validator.New()

// Middleware bundles the handlers placed in front of interaction routes.
// Limit may be nil.
type Middleware struct {
	Auth         fiber.Handler
	OptionalAuth fiber.Handler
	Limit        fiber.Handler
}

func (m Middleware) mutating() []fiber.Handler {
	if m.Limit == nil {
		return []fiber.Handler{m.Auth}
	}
	return []fiber.Handler{m.Auth, m.Limit}
}

type createPostRequest struct {
	Content       string   `json:"content" validate:"required,max=280"`
	Visibility    string   `json:"visibility" validate:"omitempty,oneof=public followers mentioned"`
	ReplySettings string   `json:"replySettings" validate:"omitempty,oneof=everyone followers mentioned"`
	Mentions      []string `json:"mentions" validate:"max=50,dive,required,max=64"`
	Hashtags      []string `json:"hashtags" validate:"max=50,dive,required,max=64"`
}

type repostRequest struct {
	Content string `json:"content" validate:"max=280"`
}

type commentRequest struct {
	Content  string   `json:"content" validate:"required,max=280"`
	Mentions []string `json:"mentions" validate:"max=50,dive,required,max=64"`
}

// RegisterPostRoutes mounts post, like, repost and comment routes on r.
func RegisterPostRoutes(r fiber.Router, svc *Service, mw Middleware) {
	r.Post("/", append(mw.mutating(), func(c *fiber.Ctx) error {
		var req createPostRequest
		if err := bind(c, &req, true); err != nil {
			return err
		}
		p, err := svc.CreatePost(c.UserContext(), auth.CallerID(c), NewPost{
			Content:       req.Content,
			Visibility:    post.Visibility(req.Visibility),
			ReplySettings: post.ReplySetting(req.ReplySettings),
			Mentions:      req.Mentions,
			Hashtags:      req.Hashtags,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})...)

	r.Get("/:id", mw.OptionalAuth, func(c *fiber.Ctx) error {
		view, err := svc.GetPost(c.UserContext(), auth.CallerID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(view)
	})

	r.Delete("/:id", mw.Auth, func(c *fiber.Ctx) error {
		if err := svc.DeletePost(c.UserContext(), auth.CallerID(c), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/like", append(mw.mutating(), func(c *fiber.Ctx) error {
		res, err := svc.ToggleLike(c.UserContext(), auth.CallerID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(res)
	})...)

	r.Post("/:id/repost", append(mw.mutating(), func(c *fiber.Ctx) error {
		var req repostRequest
		if err := bind(c, &req, false); err != nil {
			return err
		}
		res, err := svc.ToggleRepost(c.UserContext(), auth.CallerID(c), c.Params("id"), req.Content)
		if err != nil {
			return err
		}
		return c.JSON(res)
	})...)

	r.Post("/:id/comments", append(mw.mutating(), func(c *fiber.Ctx) error {
		var req commentRequest
		if err := bind(c, &req, true); err != nil {
			return err
		}
		comment, err := svc.AddComment(c.UserContext(), auth.CallerID(c), c.Params("id"), NewComment{
			Content:  req.Content,
			Mentions: req.Mentions,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	})...)

	r.Get("/:id/comments", mw.OptionalAuth, func(c *fiber.Ctx) error {
		limit, offset := page(c)
		comments, err := svc.ListComments(c.UserContext(), auth.CallerID(c), c.Params("id"), limit, offset)
		if err != nil {
			return err
		}
		return c.JSON(comments)
	})
}

// RegisterUserRoutes mounts follow routes on r. The :id segment is a user id
// or handle.
func RegisterUserRoutes(r fiber.Router, svc *Service, mw Middleware) {
	r.Get("/:id/follow", mw.OptionalAuth, func(c *fiber.Ctx) error {
		st, err := svc.FollowStatus(c.UserContext(), auth.CallerID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(st)
	})

	r.Post("/:id/follow", append(mw.mutating(), func(c *fiber.Ctx) error {
		res, err := svc.Follow(c.UserContext(), auth.CallerID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(res)
	})...)

	r.Delete("/:id/follow", append(mw.mutating(), func(c *fiber.Ctx) error {
		res, err := svc.Unfollow(c.UserContext(), auth.CallerID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(res)
	})...)

	r.Get("/:id/followers", func(c *fiber.Ctx) error {
		limit, _ := page(c)
		ids, err := svc.Followers(c.UserContext(), c.Params("id"), limit)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"followers": ids})
	})

	r.Get("/:id/following", func(c *fiber.Ctx) error {
		limit, _ := page(c)
		ids, err := svc.Following(c.UserContext(), c.Params("id"), limit)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"following": ids})
	})
}

// RegisterHashtagRoutes mounts hashtag listings on r. The :tag segment may
// carry an escaped leading '#'.
func RegisterHashtagRoutes(r fiber.Router, svc *Service, mw Middleware) {
	r.Get("/:tag/posts", mw.OptionalAuth, func(c *fiber.Ctx) error {
		tag, err := url.PathUnescape(c.Params("tag"))
		if err != nil {
			return apperr.InvalidArgument("invalid hashtag")
		}
		limit, offset := page(c)
		views, err := svc.HashtagPosts(c.UserContext(), auth.CallerID(c), tag, limit, offset)
		if err != nil {
			return err
		}
		return c.JSON(views)
	})
}

// bind parses and validates a JSON body. An empty body is accepted only when
// required is false.
func bind(c *fiber.Ctx, dst any, required bool) error {
	if len(c.Body()) == 0 {
		if required {
			return apperr.InvalidArgument("request body required")
		}
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return apperr.InvalidArgument("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.InvalidArgument(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func page(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
