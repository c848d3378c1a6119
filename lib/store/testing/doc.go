// Package testing provides a conformance suite for implementations of the
// store.IStore interface.
//
// Example usage:
//
//	func Test(t *testing.T) {
//		storetesting.RunStoreTests(t, "MyStore", func() store.IStore {
//			return NewMyStore()
//		})
//	}
package testing
