package graph

import (
	"context"
	"log/slog"

	"github.com/librarycatalog/catalog-server/internal/domain"
	"github.com/librarycatalog/catalog-server/internal/service"
)

// Resolver is the root resolver for queries, mutations and subscriptions.
type Resolver struct {
	catalog *service.CatalogService
	auth    *service.AuthService
	logger  *slog.Logger
}

// NewResolver creates the root resolver.
func NewResolver(catalog *service.CatalogService, auth *service.AuthService, logger *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, auth: auth, logger: logger}
}

// Queries

func (r *Resolver) AuthorCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.AuthorCount(ctx)
	if err != nil {
		return 0, r.surface(ctx, "authorCount", err)
	}
	return int32(n), nil //nolint:gosec // counts are far below 2^31
}

func (r *Resolver) BookCount(ctx context.Context, args struct{ Author *string }) (int32, error) {
	n, err := r.catalog.BookCount(ctx, args.Author)
	if err != nil {
		return 0, r.surface(ctx, "bookCount", err)
	}
	return int32(n), nil //nolint:gosec // counts are far below 2^31
}

func (r *Resolver) AllBooks(ctx context.Context, args struct {
	Author *string
	Genre  *string
}) ([]*bookResolver, error) {
	books, err := r.catalog.AllBooks(ctx, args.Author, args.Genre)
	if err != nil {
		return nil, r.surface(ctx, "allBooks", err)
	}
	out := make([]*bookResolver, len(books))
	for i, pb := range books {
		out[i] = r.book(pb)
	}
	return out, nil
}

func (r *Resolver) AllAuthors(ctx context.Context) ([]*authorResolver, error) {
	summaries, err := r.catalog.AllAuthors(ctx)
	if err != nil {
		return nil, r.surface(ctx, "allAuthors", err)
	}
	out := make([]*authorResolver, len(summaries))
	for i, s := range summaries {
		count := int32(s.BookCount) //nolint:gosec // counts are far below 2^31
		out[i] = &authorResolver{root: r, author: s.Author, bookCount: &count}
	}
	return out, nil
}

func (r *Resolver) Me(ctx context.Context) *userResolver {
	if u := r.auth.Me(ctx); u != nil {
		return &userResolver{user: u}
	}
	return nil
}

// Mutations

type addBookArgs struct {
	Title     string
	Published int32
	Author    string
	Genres    []string
}

func (r *Resolver) AddBook(ctx context.Context, args addBookArgs) (*bookResolver, error) {
	pb, err := r.catalog.AddBook(ctx, service.AddBookInput{
		Title:     args.Title,
		Published: int(args.Published),
		Author:    args.Author,
		Genres:    args.Genres,
	})
	if err != nil {
		return nil, r.surface(ctx, "addBook", err)
	}
	return r.book(*pb), nil
}

func (r *Resolver) EditAuthor(ctx context.Context, args struct {
	Name      string
	SetBornTo int32
}) (*authorResolver, error) {
	author, err := r.catalog.EditAuthor(ctx, args.Name, int(args.SetBornTo))
	if err != nil {
		return nil, r.surface(ctx, "editAuthor", err)
	}
	if author == nil {
		return nil, nil
	}
	return &authorResolver{root: r, author: author}, nil
}

func (r *Resolver) CreateUser(ctx context.Context, args struct {
	Username      string
	FavoriteGenre string
	Password      *string
}) (*userResolver, error) {
	user, err := r.auth.CreateUser(ctx, service.CreateUserInput{
		Username:      args.Username,
		FavoriteGenre: args.FavoriteGenre,
		Password:      args.Password,
	})
	if err != nil {
		return nil, r.surface(ctx, "createUser", err)
	}
	return &userResolver{user: user}, nil
}

func (r *Resolver) Login(ctx context.Context, args struct {
	Username string
	Password string
}) (*tokenResolver, error) {
	token, err := r.auth.Login(ctx, args.Username, args.Password)
	if err != nil {
		return nil, r.surface(ctx, "login", err)
	}
	return &tokenResolver{value: token}, nil
}

// Subscriptions

// BookAdded streams books added after the subscription starts. The stream
// ends when ctx is canceled or the event bus closes.
func (r *Resolver) BookAdded(ctx context.Context) (<-chan *bookResolver, error) {
	events, err := r.catalog.SubscribeBookAdded(ctx)
	if err != nil {
		return nil, r.surface(ctx, "bookAdded", err)
	}

	out := make(chan *bookResolver)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case pb, ok := <-events:
				if !ok {
					return
				}
				select {
				case out <- r.book(pb):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Resolver) book(pb domain.PopulatedBook) *bookResolver {
	return &bookResolver{root: r, book: pb.Book, author: pb.Author}
}
