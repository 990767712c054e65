// Package kern assembles the kernel context: the heap allocator, the task
// scheduler, the keyboard ring buffer and the console, all running on the
// simulated machine and configured from a Config.
//
// There is no global kernel state. A Kernel owns every component and breaks
// the bootstrap cycle between the allocator lock (which yields through the
// scheduler) and the scheduler (whose ready queue lives in the heap) with a
// late-bound yield.
//
// Typical use:
//
//	k, err := kern.New(kern.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer k.Close()
//
//	err = k.Run(func(k *kern.Kernel) {
//		k.Spawn(func() { k.Console.Printf("hello\n") })
//		k.Yield()
//	})
package kern
