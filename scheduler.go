package gossipsim

// scheduler.go models the time an agent spends processing what it receives,
// for the virtual-time engine.  Each agent owns a TaskScheduler with a fixed
// number of cores; a delivery becomes a task that needs some amount of
// service (in virtual seconds).  A task whose requirement exceeds the
// timeslice is served one timeslice at a time and goes to the back of the
// line in between.  Allocation of cores is first-come first-serve.

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"golang.org/x/exp/slices"
)

// Task describes the service requirements of an operation on a msg
type Task struct {
	OpType       string                    // what operation is being performed
	req          float64                   // residual required service
	ts           float64                   // timeslice
	finished     bool                      // true once the slice in service covers req
	completeFunc evtm.EventHandlerFunction // call when finished
	context      any                       // remember this from caller, to return when finished
	Msg          any                       // information package being carried
}

// createTask is a constructor
func createTask(op string, req, ts float64, msg any, context any, complete evtm.EventHandlerFunction) *Task {
	return &Task{OpType: op, req: req, ts: ts, Msg: msg, context: context, completeFunc: complete}
}

// TaskScheduler holds data structures supporting the multi-core scheduling
type TaskScheduler struct {
	cores     int     // number of computational cores
	waiting   []*Task // work to do, not in service
	inservice []*Task // work being served concurrently
	completed int     // tasks whose completion handler has been scheduled
}

// CreateTaskScheduler is a constructor
func CreateTaskScheduler(cores int) *TaskScheduler {
	ops := new(TaskScheduler)
	ops.cores = max(cores, 1)
	ops.waiting = []*Task{}
	ops.inservice = []*Task{}
	return ops
}

// Schedule puts a piece of work either in queue to be done, or in service.  Parameters are
// - op : a code for the type of work being done
// - req : the service requirements for this task
// - ts  : timeslice, the amount of service the task gets before yielding
// - context, msg : handed to complete when the task finishes
// - complete : an event handler to be called when the task has completed
// The return is true if the task went into service and will finish in this slice.
func (ops *TaskScheduler) Schedule(evtMgr *evtm.EventManager, op string, req, ts float64,
	context any, msg any, complete evtm.EventHandlerFunction) bool {

	if ts <= 0.0 {
		ts = req
	}
	task := createTask(op, req, ts, msg, context, complete)
	return ops.joinQueue(evtMgr, task)
}

// InService is the number of tasks holding a core
func (ops *TaskScheduler) InService() int {
	return len(ops.inservice)
}

// Waiting is the number of tasks waiting for a core
func (ops *TaskScheduler) Waiting() int {
	return len(ops.waiting)
}

// Completed is the number of tasks that have finished
func (ops *TaskScheduler) Completed() int {
	return ops.completed
}

// joinQueue is called to put a Task into the data structure that governs
// allocation of service
func (ops *TaskScheduler) joinQueue(evtMgr *evtm.EventManager, task *Task) bool {
	// if all the cores are busy, put in the waiting queue and return
	if ops.cores <= len(ops.inservice) {
		ops.waiting = append(ops.waiting, task)
		return false
	}

	execute := task.ts
	task.finished = false
	if task.req <= task.ts {
		execute = task.req
		task.finished = true
	}
	task.req = max(task.req-task.ts, 0.0)
	ops.inservice = append(ops.inservice, task)

	// schedule event handler for when this timeslice completes
	evtMgr.Schedule(ops, task, timeSliceComplete, vrtime.SecondsToTime(execute))
	return task.finished
}

// timeSliceComplete is called when the timeslice allocated to a task has completed
func timeSliceComplete(evtMgr *evtm.EventManager, context any, data any) any {
	ops := context.(*TaskScheduler)
	task := data.(*Task)

	ops.inservice = slices.DeleteFunc(ops.inservice, func(t *Task) bool { return t == task })

	if task.finished {
		ops.completed += 1
		evtMgr.Schedule(task.context, task.Msg, task.completeFunc, vrtime.SecondsToTime(0.0))
	} else {
		// residual service, behind everyone already waiting
		ops.waiting = append(ops.waiting, task)
	}

	// the freed core goes to the first (FCFS) waiting task
	if len(ops.waiting) > 0 {
		newtask := ops.waiting[0]
		ops.waiting = ops.waiting[1:]
		ops.joinQueue(evtMgr, newtask)
	}
	return nil
}
