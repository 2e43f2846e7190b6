package domain

// Board categories in presentation order.
const (
	CategoryTodo       = "todo"
	CategoryInProgress = "inProgress"
	CategoryDone       = "done"
)

// BoardCategories lists the columns every board listing contains, in order.
var BoardCategories = []string{CategoryTodo, CategoryInProgress, CategoryDone}

// OtherCategoryRank is the rank shared by every category outside the board set.
const OtherCategoryRank = 4

// CategoryRank returns the sort rank of a category: todo=1, inProgress=2,
// done=3, anything else OtherCategoryRank.
func CategoryRank(category string) int {
	switch category {
	case CategoryTodo:
		return 1
	case CategoryInProgress:
		return 2
	case CategoryDone:
		return 3
	default:
		return OtherCategoryRank
	}
}

// IsBoardCategory reports whether category is one of BoardCategories.
func IsBoardCategory(category string) bool {
	return CategoryRank(category) != OtherCategoryRank
}

// TaskGroup is a category with all the tasks filed under it.
type TaskGroup struct {
	Category string `json:"category" bson:"category"`
	Tasks    []Task `json:"tasks" bson:"tasks"`
}

// Board re-expresses grouped tasks as exactly the three board columns.
// Columns without tasks get an empty list. Groups whose category is not a
// board category are not part of the result; their task count is returned
// as dropped so callers can report it.
func Board(groups []TaskGroup) (board []TaskGroup, dropped int) {
	byCategory := make(map[string][]Task, len(groups))
	for _, g := range groups {
		if !IsBoardCategory(g.Category) {
			dropped += len(g.Tasks)
			continue
		}
		byCategory[g.Category] = append(byCategory[g.Category], g.Tasks...)
	}

	board = make([]TaskGroup, 0, len(BoardCategories))
	for _, category := range BoardCategories {
		tasks := byCategory[category]
		if tasks == nil {
			tasks = []Task{}
		}
		board = append(board, TaskGroup{Category: category, Tasks: tasks})
	}
	return board, dropped
}
