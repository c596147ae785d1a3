package repository

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMongoURI(t *testing.T) {
	Convey("Given mongo host settings", t, func() {
		So(MongoURI("db"), ShouldEqual, "mongodb://db:27017")
		So(MongoURI(" db:27018 "), ShouldEqual, "mongodb://db:27018")
		So(MongoURI("mongodb://user:pw@db:1/x"), ShouldEqual, "mongodb://user:pw@db:1/x")
		So(MongoURI("mongodb+srv://cluster.example"), ShouldEqual, "mongodb+srv://cluster.example")
	})
}

func TestListOptions(t *testing.T) {
	Convey("Given the leaderboard find options", t, func() {
		Convey("Then _id is projected away", func() {
			So(listOptions().Projection, ShouldResemble, bson.M{"_id": 0})
		})
	})
}

func TestApplyPipeline(t *testing.T) {
	Convey("Given the apply pipeline for a rating", t, func() {
		p := applyPipeline(1600)

		Convey("Then it is one $set stage that writes every field", func() {
			So(len(p), ShouldEqual, 1)
			So(p[0][0].Key, ShouldEqual, "$set")
			fields := p[0][0].Value.(bson.D)
			keys := make([]string, 0, len(fields))
			for _, f := range fields {
				keys = append(keys, f.Key)
			}
			So(keys, ShouldResemble, []string{"history", "wins", "losses", "mmr"})
			So(fields[3].Value, ShouldEqual, int64(1600))
		})
	})
}
