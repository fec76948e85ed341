// Package containers provides testcontainers-backed infrastructure for
// integration tests: an Eclipse Mosquitto broker for the MQTT ingest path
// and a MySQL server for repository tests.
//
// Containers are typically managed from TestMain:
//
//	var broker *containers.MosquittoContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    broker, err = containers.NewMosquittoContainer(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = broker.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Everything here is behind the integration build tag so unit tests never
// pull in Docker:
//
//	go test -tags=integration ./...
package containers
