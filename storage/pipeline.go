package storage

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Hasinur3813/task-manager-server/domain"
)

// groupByCategoryPipeline matches the tasks of one user, groups the full
// documents by category and orders the groups todo, inProgress, done, then
// any other category. Each output document decodes into domain.TaskGroup.
func groupByCategoryPipeline(email string) mongo.Pipeline {
	branches := make(bson.A, 0, len(domain.BoardCategories))
	for _, category := range domain.BoardCategories {
		branches = append(branches, bson.D{
			{Key: "case", Value: bson.D{{Key: "$eq", Value: bson.A{"$_id", category}}}},
			{Key: "then", Value: domain.CategoryRank(category)},
		})
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "user", Value: email}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "tasks", Value: bson.D{{Key: "$push", Value: "$$ROOT"}}},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "sortOrder", Value: bson.D{{Key: "$switch", Value: bson.D{
				{Key: "branches", Value: branches},
				{Key: "default", Value: domain.OtherCategoryRank},
			}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "sortOrder", Value: 1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "category", Value: "$_id"},
			{Key: "tasks", Value: 1},
		}}},
	}
}
