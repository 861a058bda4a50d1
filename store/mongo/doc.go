// Package mongo loads subscription snapshots from MongoDB using the
// official mongo-driver/v2. Subscriptions reference their owner in a
// users collection and FindByID joins the two with $lookup. Document ids
// may be ObjectIDs or plain strings.
//
// The caller owns the *mongo.Database lifecycle; Store never disconnects
// the client:
//
//	client, _ := mongo.Connect(options.Client().ApplyURI(uri))
//	subs := storemongo.New(client.Database("subscriptions"))
//	subs.Migrate(ctx)
//
// The store also implements notify.DedupStore with a TTL index on the
// dedup collection.
package mongo
