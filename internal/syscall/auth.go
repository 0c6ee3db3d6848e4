package syscall

import (
	"hash/fnv"
	"sync"

	"exos/internal/defs"
	"exos/internal/proc"
	"exos/internal/sched"
)

func init() {
	register(FuncLogin, defs.PrivUser, loginCall)
	register(FuncLogout, defs.PrivUser, logoutCall)
	register(FuncGetCurrentUser, defs.PrivUser, getCurrentUserCall)
	register(FuncChangePassword, defs.PrivUser, changePasswordCall)
	register(FuncCreateUser, defs.PrivKernel, createUserCall)
	register(FuncDeleteUser, defs.PrivKernel, deleteUserCall)
	register(FuncListUsers, defs.PrivUser, listUsersCall)

	seedDefaultUsers()
}

// account is one entry of the in-memory user table backing the Auth
// syscall group (spec §4.8's Login/Logout/GetCurrentUser/ChangePassword/
// CreateUser/DeleteUser/ListUsers), supplementing the distilled spec: the
// original kernel's login subsystem is out of scope for spec.md's
// process/task/VMM core, but the syscall table still names the group,
// so it gets a minimal backing store rather than a silent gap.
type account struct {
	id           uint32
	name         string
	passwordHash uint32
	group        uint32
}

var (
	usersMu  sync.Mutex
	users           = map[uint32]*account{}
	nextUser uint32 = 1
)

func hashPassword(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// seedDefaultUsers creates the built-in administrator account every
// EXOS boot starts with, the way original_source ships a default login.
func seedDefaultUsers() {
	usersMu.Lock()
	defer usersMu.Unlock()
	id := nextUser
	nextUser++
	users[id] = &account{id: id, name: "admin", passwordHash: hashPassword("admin"), group: 0}
}

// loggedIn maps a process id to the user account id it authenticated as.
var (
	loggedInMu sync.Mutex
	loggedIn   = map[defs.Pid_t]uint32{}
)

// loginArgsSize is {NamePtr, PasswordPtr}.
const loginArgsSize = 2 * 4

func loginCall(param uint32) uint32 {
	if !checkPtr(param, loginArgsSize) {
		return errRet(-defs.EFAULT)
	}
	namePtr, _ := readU32(param)
	passPtr, _ := readU32(param + 4)
	name, ok := readCString(namePtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	pass, ok := readCString(passPtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}

	usersMu.Lock()
	var found *account
	for _, a := range users {
		if a.name == name {
			found = a
			break
		}
	}
	usersMu.Unlock()
	if found == nil || found.passwordHash != hashPassword(pass) {
		return errRet(-defs.EPERM)
	}

	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	pid := defs.Pid_t(t.Process.Hdr.Id)
	loggedInMu.Lock()
	loggedIn[pid] = found.id
	loggedInMu.Unlock()
	t.Process.Security = proc.NewSecurity(found.id, found.group)
	return okRet(uint32(defs.ENONE))
}

func logoutCall(_ uint32) uint32 {
	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	pid := defs.Pid_t(t.Process.Hdr.Id)
	loggedInMu.Lock()
	delete(loggedIn, pid)
	loggedInMu.Unlock()
	return okRet(uint32(defs.ENONE))
}

func getCurrentUserCall(_ uint32) uint32 {
	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	return okRet(t.Process.Security.User)
}

// changePasswordArgsSize is {OldPasswordPtr, NewPasswordPtr}.
const changePasswordArgsSize = 2 * 4

func changePasswordCall(param uint32) uint32 {
	if !checkPtr(param, changePasswordArgsSize) {
		return errRet(-defs.EFAULT)
	}
	oldPtr, _ := readU32(param)
	newPtr, _ := readU32(param + 4)
	oldPass, ok := readCString(oldPtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	newPass, ok := readCString(newPtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}

	t := sched.CurrentTask()
	if t == nil || t.Process == nil {
		return errRet(-defs.EUNEXPECTED)
	}
	usersMu.Lock()
	defer usersMu.Unlock()
	a, ok := users[t.Process.Security.User]
	if !ok || a.passwordHash != hashPassword(oldPass) {
		return errRet(-defs.EPERM)
	}
	a.passwordHash = hashPassword(newPass)
	return okRet(uint32(defs.ENONE))
}

// createUserArgsSize is {NamePtr, PasswordPtr, Group}.
const createUserArgsSize = 3 * 4

func createUserCall(param uint32) uint32 {
	if !checkPtr(param, createUserArgsSize) {
		return errRet(-defs.EFAULT)
	}
	namePtr, _ := readU32(param)
	passPtr, _ := readU32(param + 4)
	group, _ := readU32(param + 8)
	name, ok := readCString(namePtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}
	pass, ok := readCString(passPtr, maxNameLen)
	if !ok {
		return errRet(-defs.EFAULT)
	}

	usersMu.Lock()
	defer usersMu.Unlock()
	for _, a := range users {
		if a.name == name {
			return errRet(-defs.EEXIST)
		}
	}
	id := nextUser
	nextUser++
	users[id] = &account{id: id, name: name, passwordHash: hashPassword(pass), group: group}
	return okRet(id)
}

func deleteUserCall(param uint32) uint32 {
	usersMu.Lock()
	defer usersMu.Unlock()
	if _, ok := users[param]; !ok {
		return errRet(-defs.EINVAL)
	}
	delete(users, param)
	return okRet(uint32(defs.ENONE))
}

// listUsersArgsSize is {OutBufferPtr, MaxCount}; each entry written is a
// U32 user id.
const listUsersArgsSize = 2 * 4

func listUsersCall(param uint32) uint32 {
	if !checkPtr(param, listUsersArgsSize) {
		return errRet(-defs.EFAULT)
	}
	outPtr, _ := readU32(param)
	maxCount, _ := readU32(param + 4)

	usersMu.Lock()
	ids := make([]uint32, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	usersMu.Unlock()

	n := uint32(len(ids))
	if n > maxCount {
		n = maxCount
	}
	for i := uint32(0); i < n; i++ {
		writeU32(outPtr+i*4, ids[i])
	}
	return okRet(n)
}
